package internal

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatter/internal/storage"
)

const (
	defaultTokenTTL     = 72 * time.Hour
	defaultMaxImageSize = 10 * 1024 * 1024
)

// ServerOptions carries the knobs the server cannot default on its own.
type ServerOptions struct {
	JWTSecret    []byte
	TokenTTL     time.Duration
	UploadDir    string
	MaxImageSize int64
}

// Server owns the shared state behind the HTTP and websocket handlers: the
// persistent store, the presence registry with its hub and router, the image
// store, and the metrics.
type Server struct {
	store       *storage.Store
	registry    *Registry
	hub         *Hub
	router      *Router
	broadcaster *Broadcaster
	images      *ImageStore
	metrics     *Metrics
	authLimiter *RateLimiter
	promReg     *prometheus.Registry
	jwtSecret   []byte
	tokenTTL    time.Duration
}

func NewServer(store *storage.Store, opts ServerOptions) *Server {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.MaxImageSize == 0 {
		opts.MaxImageSize = defaultMaxImageSize
	}
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	registry := NewRegistry()
	hub := NewHub()
	return &Server{
		store:       store,
		registry:    registry,
		hub:         hub,
		router:      NewRouter(registry, metrics),
		broadcaster: NewBroadcaster(hub, registry, metrics),
		images:      NewImageStore(opts.UploadDir, opts.MaxImageSize),
		metrics:     metrics,
		authLimiter: NewRateLimiter(1, 10),
		promReg:     promReg,
		jwtSecret:   opts.JWTSecret,
		tokenTTL:    opts.TokenTTL,
	}
}

// MetricsHandler exposes the server's own prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
