package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sharp-crm/crm-sub000/internal/auth"
	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/internal/repository"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
	"github.com/sharp-crm/crm-sub000/pkg/httputil"
	"github.com/sharp-crm/crm-sub000/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type:
// application/json. Bodyless requests (e.g. POST restore endpoints) pass
// through untouched.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticator resolves the caller identity for protected routes. The token
// only proves who the caller is; role and tenant come from the live user
// record so revoked accounts and role changes take effect within one request,
// not one token lifetime.
type Authenticator struct {
	tokenManager *auth.TokenManager
	userRepo     repository.UserRepository
	logger       *slog.Logger
}

// NewAuthenticator creates the auth middleware.
func NewAuthenticator(tokenManager *auth.TokenManager, userRepo repository.UserRepository, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokenManager: tokenManager,
		userRepo:     userRepo,
		logger:       logger,
	}
}

// Middleware validates the bearer token, re-resolves the user, and stashes
// the identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := a.tokenManager.ValidateAccessToken(parts[1])
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		identity, err := a.resolveIdentity(r, claims)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}

		ctx := domain.NewIdentityContext(r.Context(), identity)
		ctx = middleware.WithUser(ctx, identity.UserID, identity.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveIdentity builds the caller identity from the live user record,
// falling back to the token claims only when the store is unreachable.
func (a *Authenticator) resolveIdentity(r *http.Request, claims *auth.Claims) (*domain.Identity, error) {
	user, err := a.userRepo.GetByEmail(r.Context(), claims.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errors.New("user not found")
		}

		// Store outage: degrade to token claims rather than failing every
		// authenticated request.
		a.logger.WarnContext(r.Context(), "user store unavailable, authenticating from token claims",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		return &domain.Identity{
			UserID:   claims.UserID,
			Email:    claims.Email,
			Role:     claims.Role,
			TenantID: claims.TenantID,
			Stale:    true,
		}, nil
	}

	if user.IsDeleted {
		return nil, errors.New("account has been deleted")
	}

	return &domain.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		TenantID:  user.TenantID,
	}, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}
