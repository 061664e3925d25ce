package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/devicetoken"
	"github.com/MrEthical07/sensorgate/internal"
	"github.com/MrEthical07/sensorgate/internal/identity"
	"github.com/MrEthical07/sensorgate/metrics"
	"github.com/MrEthical07/sensorgate/middleware"
	"github.com/MrEthical07/sensorgate/telemetry"
)

// Publisher forwards device payloads into the telemetry pipeline.
// *telemetry.Feed satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Options wires the handlers. Engine is required. Without Telemetry the
// sensor routes are not registered; without Devices publishing is disabled.
type Options struct {
	Engine    *sensorgate.Engine
	Telemetry *telemetry.Router
	Hub       *telemetry.Hub
	// Publisher defaults to handing payloads to Telemetry directly.
	Publisher Publisher
	Devices   *devicetoken.Manager
	Metrics   *metrics.Collector
	Log       logrus.FieldLogger
}

// Server holds the HTTP handlers.
type Server struct {
	engine    *sensorgate.Engine
	telemetry *telemetry.Router
	hub       *telemetry.Hub
	publisher Publisher
	devices   *devicetoken.Manager
	metrics   *metrics.Collector
	identity  *identity.Resolver
	log       logrus.FieldLogger
}

func NewServer(opts Options) *Server {
	s := &Server{
		engine:    opts.Engine,
		telemetry: opts.Telemetry,
		hub:       opts.Hub,
		publisher: opts.Publisher,
		devices:   opts.Devices,
		metrics:   opts.Metrics,
		log:       internal.LoggerOrDiscard(opts.Log),
	}
	s.identity = identity.Default(s.sessionUserID, opts.Engine.CookieName())
	return s
}

// sessionUserID returns the caller's user id on routes the gate lets through
// without a session. A missing or stale session yields "".
func (s *Server) sessionUserID(r *http.Request) string {
	if p, ok := middleware.ProfileFromContext(r.Context()); ok {
		return p.ID
	}
	token := middleware.SessionToken(r, s.engine.CookieName())
	if token == "" {
		return ""
	}
	p, err := s.engine.Validate(r.Context(), token)
	if err != nil {
		if sensorgate.KindOf(err) == sensorgate.KindSystem {
			s.log.WithError(err).Warn("session lookup for challenge scope failed")
		}
		return ""
	}
	return p.ID
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	if s.metrics != nil {
		router.Use(s.metrics.Middleware(routeTemplate))
	}
	router.Use(middleware.Gate(s.engine, middleware.GateConfig{
		CookieName: s.engine.CookieName(),
		Log:        s.log,
	}))

	s.RegisterRoutes(router)
	return recoverMiddleware(s.log, requestLoggingMiddleware(s.log, clientIPMiddleware(router)))
}

// RegisterRoutes registers every route on router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", s.healthz).Methods("GET")
	if s.metrics != nil {
		router.Handle("/metrics", s.metricsHandler()).Methods("GET")
	}

	user := router.PathPrefix("/user").Subrouter()
	user.HandleFunc("/login", s.login).Methods("POST")
	user.HandleFunc("/register", s.register).Methods("POST")
	user.HandleFunc("/logout", s.logout).Methods("POST")
	user.HandleFunc("/current", s.current).Methods("GET")
	user.HandleFunc("/sendEmailCode", s.sendEmailCode).Methods("POST")
	user.HandleFunc("/verifyEmailCode", s.verifyEmailCode).Methods("POST")
	user.HandleFunc("/sendPhoneCode", s.sendPhoneCode).Methods("POST")
	user.HandleFunc("/verifyPhoneCode", s.verifyPhoneCode).Methods("POST")
	user.HandleFunc("/code/image", s.imageCode).Methods("GET")

	if s.telemetry == nil {
		return
	}
	sensor := router.PathPrefix("/sensor").Subrouter()
	sensor.HandleFunc("/all", s.sensorAll).Methods("GET")
	sensor.HandleFunc("/ws", s.sensorStream).Methods("GET")
	sensor.HandleFunc("/publish/{kind}", s.sensorPublish).Methods("POST")
	sensor.HandleFunc("/{kind}", s.sensorLatest).Methods("GET")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if err := s.engine.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health check failed")
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	writeJSON(w, s.log, status, body)
}

func (s *Server) metricsHandler() http.Handler {
	next := s.metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.hub != nil {
			s.metrics.SetViewers(s.hub.ViewerCount())
		}
		next.ServeHTTP(w, r)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
