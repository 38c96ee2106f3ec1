package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth provides API key authentication for write endpoints. Keys are
// compared in constant time.
type APIKeyAuth struct {
	mu         sync.RWMutex
	headerName string
	keys       map[string]struct{}
}

// NewAPIKeyAuth creates a new API key authenticator.
func NewAPIKeyAuth(headerName string, keys []string) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}

	a := &APIKeyAuth{
		headerName: headerName,
		keys:       make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		if k != "" {
			a.keys[k] = struct{}{}
		}
	}
	return a
}

// AddKey adds a valid API key.
func (a *APIKeyAuth) AddKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key] = struct{}{}
}

// IsValid checks if an API key is valid.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Enabled reports whether any keys are configured. With no keys the
// middleware lets everything through, which is the local-dev default.
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys) > 0
}

// Middleware returns an HTTP middleware that checks for a valid API key.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if !a.IsValid(r.Header.Get(a.headerName)) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"unauthorized","message":"Invalid or missing API key"}}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEOUT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TimeoutMiddleware adds a timeout to request contexts.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CONTROL MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// NoCacheMiddleware prevents caching of API responses.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
