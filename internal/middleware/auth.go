package middleware

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/MedScribe/internal/config"
)

type principalCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// keyVerifier checks raw API keys against the configured bcrypt hashes.
// Verified keys are remembered by digest so bcrypt runs once per key.
type keyVerifier struct {
	hashes   [][]byte
	verified sync.Map // [32]byte -> int (hash index)
}

func (v *keyVerifier) verify(raw string) (int, bool) {
	digest := sha256.Sum256([]byte(raw))
	if idx, ok := v.verified.Load(digest); ok {
		return idx.(int), true
	}
	for i, h := range v.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(raw)) == nil {
			v.verified.Store(digest, i)
			return i, true
		}
	}
	return 0, false
}

// Auth returns middleware that requires one of the configured API keys,
// sent as X-API-Key, Authorization: Bearer, or ?api_key= on /ws.
// When auth is disabled every request passes as the "anonymous" principal.
func Auth(cfg config.Auth) func(http.Handler) http.Handler {
	v := &keyVerifier{}
	for _, h := range cfg.APIKeyHashes {
		v.hashes = append(v.hashes, []byte(h))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalCtxKey{}, "anonymous")))
				return
			}
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			raw := credential(r)
			if raw == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			idx, ok := v.verify(raw)
			if !ok {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey{}, "key-"+strconv.Itoa(idx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credential(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// Browsers cannot set headers on WebSocket upgrades.
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("api_key")
	}
	return ""
}

// PrincipalFromContext names the caller authenticated by Auth.
func PrincipalFromContext(ctx context.Context) string {
	p, _ := ctx.Value(principalCtxKey{}).(string)
	return p
}
