package access

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pelorus-marine/pelorus/internal/shared"
)

// EffectiveResolver computes the effective permission set for a user.
// Implemented by the users service; the middleware never resolves itself.
type EffectiveResolver interface {
	EffectiveFor(ctx context.Context, userID int64) (PermissionSet, error)
}

// DecisionRecorder receives allow/deny outcomes, typically for metrics.
type DecisionRecorder interface {
	AuthzDecision(allowed bool)
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Resolver  EffectiveResolver
	Logger    *slog.Logger
	Decisions DecisionRecorder
}

// RequireAny ensures the current user holds at least one of the required
// permissions.
func (m Middleware) RequireAny(slugs ...string) func(http.Handler) http.Handler {
	normalized := normalizeSlugs(slugs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			gate, ok := m.gateFor(r)
			if ok && gate.CanAny(normalized...) {
				m.record(true)
				next.ServeHTTP(w, r)
				return
			}
			m.record(false)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current user holds every required permission.
func (m Middleware) RequireAll(slugs ...string) func(http.Handler) http.Handler {
	normalized := normalizeSlugs(slugs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			gate, ok := m.gateFor(r)
			if ok && gate.CanAll(normalized...) {
				m.record(true)
				next.ServeHTTP(w, r)
				return
			}
			m.record(false)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// gateFor resolves the effective set for the session user. Any failure
// yields the zero Gate, which denies everything.
func (m Middleware) gateFor(r *http.Request) (Gate, bool) {
	userID, ok := m.currentUserID(r)
	if !ok {
		return Gate{}, false
	}
	effective, err := m.Resolver.EffectiveFor(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve effective permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return Gate{}, false
	}
	return NewGate(effective), true
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (m Middleware) record(allowed bool) {
	if m.Decisions != nil {
		m.Decisions.AuthzDecision(allowed)
	}
}

func normalizeSlugs(slugs []string) []string {
	unique := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		slug = strings.TrimSpace(strings.ToLower(slug))
		if slug == "" {
			continue
		}
		unique[slug] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for slug := range unique {
		normalized = append(normalized, slug)
	}
	return normalized
}
