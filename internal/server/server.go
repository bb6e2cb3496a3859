package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carenet/apiserver/config"
	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/internal/db"
	"github.com/carenet/apiserver/internal/handlers"
	"github.com/carenet/apiserver/internal/logging"
	"github.com/carenet/apiserver/internal/services"
	"github.com/carenet/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	log        zerolog.Logger
}

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	AuthService *services.AuthService
	Tokens      *auth.TokenService
	Log         zerolog.Logger
	CORS        config.CORSConfig
}

// New constructs a Server from cfg. It fails when the configuration is
// unsafe, including a missing JWT secret.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	passwords := auth.NewPasswordVerifier(cfg.Password.Cost, cfg.Password.MaxConcurrent)

	repo, dbConn, err := openUserRepository(ctx, cfg, passwords)
	if err != nil {
		return nil, err
	}

	var verifier auth.CodeVerifier = auth.NewTOTPVerifier(uint(cfg.MFA.Skew))
	if cfg.MFA.Mode == config.MFAModeStatic {
		log.Warn().Msg("MFA_MODE=static: one-time codes are compared verbatim with stored values")
		verifier = auth.StaticVerifier{}
	}
	if !cfg.MFA.RequirePendingToken {
		log.Warn().Msg("MFA_REQUIRE_PENDING_TOKEN=false: the mfa endpoint does not require a completed password step")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret)
	authService := services.NewAuthService(
		services.NewUserService(repo),
		passwords,
		auth.NewMFAManager(verifier),
		tokens,
		services.AuthOptions{RequirePendingToken: cfg.MFA.RequirePendingToken},
	)

	router := NewRouter(RouterDeps{
		AuthService: authService,
		Tokens:      tokens,
		Log:         log,
		CORS:        cfg.CORS,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		log:        log,
	}, nil
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(deps.Log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: deps.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.AuthService)
		})
		r.With(handlers.RequireAuth(deps.Tokens)).Get("/patients", handlers.ListPatients)
	})
	return router
}

func openUserRepository(ctx context.Context, cfg config.Config, passwords *auth.PasswordVerifier) (services.UserRepository, *sql.DB, error) {
	if cfg.Store.Driver == config.StorePostgres {
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store.NewUserRepository(dbConn), dbConn, nil
	}

	users, err := store.BuildSeedUsers(ctx, store.DefaultSeed, passwords, cfg.MFA.Mode == config.MFAModeStatic)
	if err != nil {
		return nil, nil, err
	}
	repo, err := store.NewMemoryUserRepository(users)
	if err != nil {
		return nil, nil, err
	}
	return repo, nil, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
