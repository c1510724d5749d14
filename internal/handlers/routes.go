package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	guard := Guard{Sessions: deps.Sessions, Users: deps.Users, CookieName: deps.SessionCookieName}

	health := HealthHandler{}
	auth := AuthHandler{
		Users:      deps.Users,
		Sessions:   deps.Sessions,
		Guard:      guard,
		CookieName: deps.SessionCookieName,
		Limiter:    deps.Limiter,
	}
	oauth := OAuthHandler{
		Users:      deps.Users,
		Sessions:   deps.Sessions,
		Provider:   deps.OAuth,
		CookieName: deps.SessionCookieName,
	}
	uploads := UploadHandler{
		Issuer:    deps.UploadTokens,
		Completer: deps.Uploads,
		Blobs:     deps.Blobs,
		Guard:     guard,
		Limiter:   deps.Limiter,
	}
	videos := VideoHandler{
		Videos:     deps.Videos,
		Thumbnails: deps.Thumbnails,
		Blobs:      deps.Blobs,
		Guard:      guard,
		Cache:      deps.BrowseCache,
	}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/auth/me", auth.Me)
	mux.HandleFunc("/api/v1/auth/google/start", oauth.Start)
	mux.HandleFunc("/api/v1/auth/google/callback", oauth.Callback)

	mux.HandleFunc("/api/v1/uploads/videos", uploads.HandleVideo)
	mux.HandleFunc("/api/v1/uploads/thumbnails", uploads.HandleThumbnail)

	mux.HandleFunc("/api/v1/videos/browse", videos.Browse)
	mux.HandleFunc("/api/v1/videos/self", videos.Mine)
	mux.HandleFunc("/api/v1/videos/hidden", videos.Hidden)
	mux.HandleFunc("/api/v1/videos/{id}/approve", videos.Approve)
	mux.HandleFunc("/api/v1/videos/{id}", videos.Delete)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users        UserStore
	Sessions     SessionManager
	Videos       VideoStore
	Thumbnails   ThumbnailStore
	Blobs        BlobStore
	UploadTokens UploadTokenIssuer
	Uploads      UploadCompleter
	OAuth        OAuthProvider
	Limiter      RateLimiter

	BrowseCache       *BrowseCache
	SessionCookieName string
}
