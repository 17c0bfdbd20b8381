package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/signalhop/signalhop/internal/models"
	"github.com/signalhop/signalhop/internal/store"
)

type contextKey string

const CallerContextKey contextKey = "caller"

// tokenCacheTTL bounds how long a validated token skips the bcrypt check.
const tokenCacheTTL = 5 * time.Minute

// AuthMiddleware resolves bearer tokens to caller identities. Tokens have the
// form "<caller-uuid>.<secret>"; the secret is compared against the bcrypt
// hash stored at registration. Validated tokens are cached in Redis by
// fingerprint so the hot poll path stays cheap.
type AuthMiddleware struct {
	db    store.DataStore
	redis *store.RedisStore
}

// NewAuthMiddleware creates a new auth middleware. redis may be nil; the
// cache is then skipped.
func NewAuthMiddleware(db store.DataStore, redis *store.RedisStore) *AuthMiddleware {
	return &AuthMiddleware{db: db, redis: redis}
}

// RequireAuth verifies the bearer token and places the caller in the request
// context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		idStr, secret, ok := strings.Cut(token, ".")
		if !ok || secret == "" {
			jsonError(w, http.StatusUnauthorized, "malformed token")
			return
		}

		callerID, err := uuid.Parse(idStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "malformed token")
			return
		}

		caller, err := m.db.GetCallerByID(r.Context(), callerID)
		if err != nil || caller == nil {
			jsonError(w, http.StatusUnauthorized, "unknown caller")
			return
		}

		fingerprint := tokenFingerprint(token)
		if !m.cacheHit(r.Context(), fingerprint, caller.ID.String()) {
			if err := bcrypt.CompareHashAndPassword([]byte(caller.TokenHash), []byte(secret)); err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if m.redis != nil {
				m.redis.CacheCallerID(r.Context(), fingerprint, caller.ID.String(), tokenCacheTTL)
			}
		}

		ctx := context.WithValue(r.Context(), CallerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) cacheHit(ctx context.Context, fingerprint, callerID string) bool {
	if m.redis == nil {
		return false
	}
	return m.redis.CachedCallerID(ctx, fingerprint) == callerID
}

func tokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetCallerFromContext retrieves the authenticated caller from the request context.
func GetCallerFromContext(ctx context.Context) *models.Caller {
	caller, ok := ctx.Value(CallerContextKey).(*models.Caller)
	if !ok {
		return nil
	}
	return caller
}
