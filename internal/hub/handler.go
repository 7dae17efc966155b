package hub

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to websocket connections served by a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     ConnOptions
	origins  originPolicy
	logger   *zap.Logger
}

// NewHandler creates an upgrade handler. allowedOrigins may contain "*" to
// accept any origin. Requests without an Origin header are accepted.
func NewHandler(h *Hub, allowedOrigins []string, opts ConnOptions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	hd := &Handler{
		hub:     h,
		opts:    opts.withDefaults(),
		origins: newOriginPolicy(allowedOrigins, logger),
		logger:  logger,
	}
	hd.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     hd.checkOrigin,
	}
	return hd
}

func (hd *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}
	ws, err := hd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		hd.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	newWSConn(ws, hd.hub, hd.opts, hd.logger).run()
}

func (hd *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if hd.origins.allows(origin) {
		return true
	}
	hd.logger.Warn("blocked websocket from disallowed origin", zap.String("origin", origin))
	return false
}

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, logger *zap.Logger) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin in configuration", zap.String("origin", o))
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := p.allowed[n]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
