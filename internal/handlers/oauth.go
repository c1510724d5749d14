package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reelvault/backend/internal/logging"
	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthVerifierCookie = "oauth_verifier"
	oauthCookieTTL      = 10 * time.Minute
)

// OAuthHandler implements the Google sign-in flow. On callback the user is
// upserted: first login creates an account with a placeholder password hash,
// later logins sync the display name.
type OAuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Provider OAuthProvider

	CookieName string
	NowFunc    func() time.Time
}

// Start handles GET /api/v1/auth/google/start requests.
func (h OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if h.Provider == nil {
		respondJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "oauth is not configured"})
		return
	}

	state := uuid.NewString()
	verifier := h.Provider.GenerateVerifier()

	setTempCookie(w, oauthStateCookie, state)
	setTempCookie(w, oauthVerifierCookie, verifier)

	http.Redirect(w, r, h.Provider.AuthURL(state, verifier), http.StatusFound)
}

// Callback handles GET /api/v1/auth/google/callback requests.
func (h OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	cookieState := cookieValue(r, oauthStateCookie)
	verifier := cookieValue(r, oauthVerifierCookie)

	clearTempCookie(w, oauthStateCookie)
	clearTempCookie(w, oauthVerifierCookie)

	if code == "" || state == "" || cookieState == "" || verifier == "" || state != cookieState {
		logger.Warn("oauth callback state mismatch")
		http.Redirect(w, r, "/login?oauth=error", http.StatusFound)
		return
	}

	profile, err := h.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		logger.Error("oauth exchange failed", "error", err)
		http.Redirect(w, r, "/login?oauth=token_error", http.StatusFound)
		return
	}

	email := strings.TrimSpace(strings.ToLower(profile.Email))
	if email == "" || !profile.EmailVerified {
		logger.Warn("oauth email missing or unverified", "email", email)
		http.Redirect(w, r, "/login?oauth=email_unverified", http.StatusFound)
		return
	}

	user, err := h.upsertUser(r, profile.DisplayName(), email, profile.Sub)
	if err != nil {
		logger.Error("oauth upsert failed", "error", err, "email", email)
		http.Redirect(w, r, "/login?oauth=error", http.StatusFound)
		return
	}

	token, expiresAt, err := h.Sessions.Issue(ctx, user.ID, clientMeta(r))
	if err != nil {
		logger.Error("oauth session issue failed", "error", err, "userId", user.ID)
		http.Redirect(w, r, "/login?oauth=error", http.StatusFound)
		return
	}

	setSessionCookie(w, h.CookieName, token, expiresAt)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h OAuthHandler) upsertUser(r *http.Request, name, email, subject string) (models.User, error) {
	ctx := r.Context()

	user, err := h.Users.FindByEmail(ctx, email)
	if err == nil {
		// Existing account: sync the display name from the provider.
		if name != "" && name != user.Name {
			user.Name = name
			user.UpdatedAt = h.now()
			if err := h.Users.Update(ctx, user); err != nil {
				return models.User{}, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, err
	}

	// First login: create the account. OAuth accounts have no usable
	// password, but the schema requires a hash, so store a placeholder
	// derived from the provider subject.
	placeholder, err := bcrypt.GenerateFromPassword([]byte("oauth:"+subject+":"+uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	now := h.now()
	user = models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(placeholder),
		Role:         models.RoleGeneral,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a race with a concurrent first login for the same address.
			return h.Users.FindByEmail(ctx, email)
		}
		return models.User{}, err
	}

	return user, nil
}

func (h OAuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setTempCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTempCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
