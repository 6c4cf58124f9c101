package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"huddle-admin/backend/internal/config"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// TenantStore is the slice of the repository the middleware needs.
type TenantStore interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
}

// TenantHeader lets a SUPER_ADMIN act inside a specific tenant.
const TenantHeader = "X-Tenant-ID"

// Auth contains configuration and helpers for performing OpenID Connect
// authentication with an Okta tenant.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	repo         TenantStore
	logger       Logger
	roleClaim    string
	devRole      models.Role
	devMode      bool
	authBypass   bool
}

// New creates a new Auth object using values from the application
// configuration. It establishes a connection to the provider and prepares an
// ID token verifier.
func New(ctx context.Context, cfg *config.Config, repo TenantStore, logger Logger) (*Auth, error) {
	isDev := strings.ToUpper(cfg.Environment) == "DEV"
	shouldBypass := isDev && cfg.DevModeBypass

	var oauth2Config *oauth2.Config
	var verifier *oidc.IDTokenVerifier
	var apiVerifier *oidc.IDTokenVerifier

	if !shouldBypass {
		if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
			cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
			return nil, errors.New("auth configuration is incomplete")
		}

		provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
		if err != nil {
			return nil, err
		}

		oauth2Config = &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       []string{ScopeOpenID, ScopeProfile, ScopeEmail},
		}

		verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})

		// Access tokens usually carry a different audience (e.g. "api://default").
		apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	roleClaim := cfg.Auth.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}
	devRole := models.Role(strings.ToUpper(cfg.Auth.DevRole))
	if devRole == "" {
		devRole = models.RoleTenantAdmin
	}

	return &Auth{
		oauth2Config: oauth2Config,
		verifier:     verifier,
		apiVerifier:  apiVerifier,
		repo:         repo,
		logger:       logger,
		roleClaim:    roleClaim,
		devRole:      devRole,
		devMode:      isDev,
		authBypass:   shouldBypass,
	}, nil
}

// LoginHandler initiates the OAuth2 authorization code flow by redirecting the
// user to the Okta authorization endpoint. A random state value is stored in a
// cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from Okta. It verifies the state
// parameter, exchanges the code for tokens, validates the ID token, and sets a
// session cookie containing the raw ID token.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that resolves the caller's Session from a bearer
// token or the id_token cookie and stores it in the request context. The
// tenant comes from the e-mail domain and is provisioned on first sight.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess models.Session

		if a.authBypass {
			sess = models.Session{UserID: "dev-user", Email: "dev@localhost", Role: a.devRole}
		} else {
			var token *oidc.IDToken
			var err error

			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				token, err = a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			} else {
				cookie, cookieErr := r.Cookie("id_token")
				if cookieErr != nil {
					writeProblem(w, http.StatusUnauthorized, "authentication required")
					return
				}
				token, err = a.verifier.Verify(r.Context(), cookie.Value)
			}
			if err != nil {
				a.debug("token verification failed", "error", err)
				writeProblem(w, http.StatusUnauthorized, "invalid token")
				return
			}

			var claims map[string]interface{}
			if err := token.Claims(&claims); err != nil {
				writeProblem(w, http.StatusUnauthorized, "invalid token claims")
				return
			}
			sess.UserID = token.Subject
			sess.Email, _ = claims["email"].(string)
			role, _ := claims[a.roleClaim].(string)
			sess.Role = models.Role(strings.ToUpper(role))
		}

		parts := strings.Split(sess.Email, "@")
		if len(parts) != 2 || parts[1] == "" {
			writeProblem(w, http.StatusUnauthorized, "invalid email format in token")
			return
		}
		domain := strings.ToLower(parts[1])

		tenant, err := a.repo.GetTenantByDomain(r.Context(), domain)
		if errors.Is(err, repository.ErrNotFound) {
			tenant = &models.Tenant{Name: domain, Domain: domain}
			err = a.repo.CreateTenant(r.Context(), tenant)
		}
		if err != nil {
			if a.logger != nil {
				a.logger.Error("failed to resolve tenant", "domain", domain, "error", err)
			}
			writeProblem(w, http.StatusInternalServerError, "failed to resolve tenant")
			return
		}
		sess.TenantID = tenant.ID

		if sess.Role == models.RoleSuperAdmin {
			if override := r.Header.Get(TenantHeader); override != "" {
				sess.TenantID = override
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireWorkerToken guards the internal routes the generation worker calls.
func RequireWorkerToken(token string) func(http.Handler) http.Handler {
	return requireBearer(token, "invalid worker token")
}

// RequireOperatorToken guards the MCP surface. Its token is configured
// separately so a worker credential never reaches operator tools.
func RequireOperatorToken(token string) func(http.Handler) http.Handler {
	return requireBearer(token, "invalid operator token")
}

// requireBearer rejects every request when token is empty.
func requireBearer(token, detail string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeProblem(w, http.StatusUnauthorized, detail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *Auth) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
