// Package api provides the HTTP API server for the collaboration plane.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/scholarsync/collab-plane/internal/api/handlers"
	"github.com/scholarsync/collab-plane/internal/api/health"
	"github.com/scholarsync/collab-plane/internal/api/middleware"
	"github.com/scholarsync/collab-plane/internal/auth"
	"github.com/scholarsync/collab-plane/internal/chat"
	"github.com/scholarsync/collab-plane/internal/invitations"
	"github.com/scholarsync/collab-plane/internal/notify"
	"github.com/scholarsync/collab-plane/internal/realtime"
	"github.com/scholarsync/collab-plane/internal/rooms"
	"github.com/scholarsync/collab-plane/internal/store"
	"github.com/scholarsync/collab-plane/internal/workflows"
	"github.com/scholarsync/collab-plane/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	chat          *chat.Coordinator
	hub           *realtime.Hub
	notify        *notify.Service
	auth          *auth.Service
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, coordinator *chat.Coordinator, hub *realtime.Hub, notifySvc *notify.Service, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		chat:   coordinator,
		hub:    hub,
		notify: notifySvc,
		auth:   authSvc,
		config: cfg,
		logger: logger,
	}

	// The store is critical; the chat provider only degrades the service
	// because rooms and workflows keep working without it.
	s.healthChecker = health.NewChecker(Version)
	s.healthChecker.Register("database", st, true)
	if coordinator != nil {
		s.healthChecker.Register("chat_provider", coordinator, false)
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// Auth routes (no auth required)
	authHandler := handlers.NewAuthHandler(s.store, s.auth, s.logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	roomsSvc := rooms.NewService(s.store, s.chat, s.notify, s.logger)
	invitationsSvc := invitations.NewService(s.store, s.chat, s.notify, s.logger)
	workflowsSvc := workflows.NewService(s.store, s.notify, s.logger)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Websocket endpoint, outside the auth middleware. It is
		// authenticated in-handler because browser websocket clients
		// cannot set an Authorization header.
		wsHandler := handlers.NewWSHandler(s.hub, s.auth, s.logger)
		r.Get("/ws", wsHandler.Serve)

		r.Group(func(r chi.Router) {
			// Auth middleware for all remaining v1 routes
			authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
			r.Use(authMiddleware.Authenticate)

			// Auth validation endpoint (returns OK if token is valid - middleware already validated it)
			r.Get("/auth/validate", func(w http.ResponseWriter, r *http.Request) {
				userID := middleware.GetUserID(r.Context())
				handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "user_id": userID})
			})

			// Room routes
			roomHandler := handlers.NewRoomHandler(roomsSvc, s.logger)
			invitationHandler := handlers.NewInvitationHandler(invitationsSvc, s.logger)
			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", roomHandler.Create)
				r.Get("/", roomHandler.List)
				r.Route("/{roomID}", func(r chi.Router) {
					r.Get("/", roomHandler.Get)
					r.Delete("/", roomHandler.Deactivate)
					r.Post("/posts", roomHandler.AttachPost)
					r.Post("/invitations", invitationHandler.Send)
					r.Get("/invitations", invitationHandler.ListForRoom)
				})
			})
			r.Get("/memberships", roomHandler.Memberships)

			// Invitation routes
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", invitationHandler.ListForUser)
				r.Route("/{invitationID}", func(r chi.Router) {
					r.Post("/accept", invitationHandler.Accept)
					r.Post("/reject", invitationHandler.Reject)
					r.Post("/cancel", invitationHandler.Cancel)
					r.Post("/resend", invitationHandler.Resend)
					r.Delete("/", invitationHandler.Delete)
				})
			})

			// Notification routes
			notificationHandler := handlers.NewNotificationHandler(s.notify, s.logger)
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/{notificationID}/read", notificationHandler.MarkRead)
			})

			// Workflow routes
			workflowHandler := handlers.NewWorkflowHandler(workflowsSvc, s.logger)
			r.Route("/workflows", func(r chi.Router) {
				r.Post("/", workflowHandler.Create)
				r.Get("/", workflowHandler.List)
				r.Route("/{workflowID}", func(r chi.Router) {
					r.Get("/", workflowHandler.Get)
					r.Post("/tasks", workflowHandler.CreateTask)
					r.Put("/tasks/{taskID}", workflowHandler.UpdateTask)
				})
			})
		})
	})

	s.router = r
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
