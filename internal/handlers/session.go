package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/reelvault/backend/internal/models"
)

var errNoSession = errors.New("no valid session")

// Guard resolves the session cookie on a request to a full user record.
// Handlers that need authentication or a role check go through it.
type Guard struct {
	Sessions   SessionManager
	Users      UserStore
	CookieName string
}

// CurrentUser returns the user owning the request's session, or errNoSession.
func (g Guard) CurrentUser(r *http.Request) (models.User, error) {
	if g.Sessions == nil || g.Users == nil {
		return models.User{}, errNoSession
	}

	cookie, err := r.Cookie(g.CookieName)
	if err != nil || cookie.Value == "" {
		return models.User{}, errNoSession
	}

	session, err := g.Sessions.Authenticate(r.Context(), cookie.Value)
	if err != nil {
		return models.User{}, errNoSession
	}

	user, err := g.Users.FindByID(r.Context(), session.UserID)
	if err != nil {
		return models.User{}, errNoSession
	}

	return user, nil
}

// require writes a 401 and returns false when the request has no valid
// session. When roles are given, a user outside them gets a 403.
func (g Guard) require(w http.ResponseWriter, r *http.Request, roles ...models.Role) (models.User, bool) {
	user, err := g.CurrentUser(r)
	if err != nil {
		respondJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return models.User{}, false
	}

	if len(roles) > 0 {
		allowed := false
		for _, role := range roles {
			if user.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			respondJSON(r.Context(), w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
			return models.User{}, false
		}
	}

	return user, true
}

// setSessionCookie writes the HttpOnly session cookie.
func setSessionCookie(w http.ResponseWriter, name, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func clearSessionCookie(w http.ResponseWriter, name string) {
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
