// Package auth guards the operator HTTP surface with a bearer token whose
// bcrypt hash is held in configuration.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/promohub/internal/app/system/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// OperatorActor is the audit actor recorded for authenticated operator calls.
const OperatorActor = "operator"

type ctxKey string

const operatorKey ctxKey = "operator"

// IsOperator reports whether the request passed the operator guard.
func IsOperator(r *http.Request) bool {
	ok, _ := r.Context().Value(operatorKey).(bool)
	return ok
}

// HashToken returns the bcrypt hash to store in operator_token_hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Guard checks operator bearer tokens. Failed attempts are counted per
// client IP; once the limiter refuses, requests from that IP get 429
// without a bcrypt comparison.
type Guard struct {
	hash     []byte
	failures *ratelimit.Limiter
	log      *zap.Logger
}

// NewGuard creates a Guard. failures may be nil to disable throttling.
func NewGuard(tokenHash string, failures *ratelimit.Limiter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		hash:     []byte(strings.TrimSpace(tokenHash)),
		failures: failures,
		log:      logger,
	}
}

// Require only lets through requests whose Authorization header carries
// a bearer token matching the configured hash.
//   - no hash configured: 503, the surface is disabled.
//   - too many failed attempts from the client: 429.
//   - missing or malformed header: 401.
//   - wrong token: 403.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(g.hash) == 0 {
			http.Error(w, "operator access disabled", http.StatusServiceUnavailable)
			return
		}

		ip := ratelimit.ClientIP(r)
		if g.failures != nil && g.failures.Remaining(ip) == 0 {
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			g.fail(ip)
			w.Header().Set("WWW-Authenticate", `Bearer realm="promohub"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
			g.fail(ip)
			g.log.Warn("operator token rejected",
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if g.failures != nil {
			g.failures.Reset(ip)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey, true)))
	})
}

func (g *Guard) fail(ip string) {
	if g.failures != nil {
		g.failures.Allow(ip)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
