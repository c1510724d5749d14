package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// GoogleUser is the portion of the OpenID userinfo response we care about.
type GoogleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider wraps golang.org/x/oauth2 for the Google authorization-code
// flow with PKCE. The code-for-token exchange happens server to server, so
// the access token never reaches the browser.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a provider with the given client credentials.
// callbackURL must match the redirect URI registered with Google exactly.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
	}
}

// AuthURL returns the consent-screen URL for the provided CSRF state and PKCE
// verifier. The caller stores both in short-lived cookies and checks them on
// callback.
func (p *GoogleProvider) AuthURL(state, verifier string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
}

// GenerateVerifier returns a fresh PKCE code verifier.
func (p *GoogleProvider) GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// Exchange completes the flow: trades the authorization code for a Google
// user profile via the OpenID userinfo endpoint.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*GoogleUser, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging oauth code: %w", err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: google userinfo returned status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding google userinfo: %w", err)
	}

	if user.Sub == "" {
		return nil, fmt.Errorf("auth: google returned an empty subject")
	}

	return &user, nil
}

// DisplayName picks the best available name for the profile, falling back to
// the email address.
func (u *GoogleUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if combined := joinName(u.GivenName, u.FamilyName); combined != "" {
		return combined
	}
	return u.Email
}

func joinName(given, family string) string {
	switch {
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	default:
		return family
	}
}
