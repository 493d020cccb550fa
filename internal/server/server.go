// Package server exposes the HTTP and websocket API: reads over the
// reconciled claim state, and write routes that execute sale and resale
// actions with the node's configured wallet.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
	"github.com/cryptoticketing/ticketd/internal/server/handler"
	"github.com/cryptoticketing/ticketd/internal/server/middleware"
	"github.com/cryptoticketing/ticketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards the API when set; empty disables authentication.
	APIKey string
	// RateLimit is requests per client IP per RateWindow; 0 disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the route handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Sales    *handler.SaleHandler
	Listings *handler.ListingHandler
	Events   *handler.EventHandler
}

// Server is the HTTP + websocket front of ticketd.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. limiter
// may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	mux.HandleFunc("GET /api/events/{eventId}", handlers.Events.GetEvent)
	mux.HandleFunc("POST /api/events", handlers.Events.CreateEvent)
	mux.HandleFunc("DELETE /api/events/{eventId}", handlers.Events.DeleteEvent)

	mux.HandleFunc("GET /api/sales/{eventId}", handlers.Sales.GetSale)
	mux.HandleFunc("GET /api/sales/{eventId}/state", handlers.Sales.GetState)
	mux.HandleFunc("POST /api/sales/{eventId}/enter", handlers.Sales.EnterSale)
	mux.HandleFunc("POST /api/sales/{eventId}/claim", handlers.Sales.ClaimTicket)
	mux.HandleFunc("POST /api/sales/{eventId}/withdraw-entry", handlers.Sales.WithdrawEntry)
	mux.HandleFunc("POST /api/sales/{eventId}/withdraw-stake", handlers.Sales.WithdrawStake)
	mux.HandleFunc("POST /api/sales/{eventId}/configure", handlers.Sales.ConfigureSale)
	mux.HandleFunc("POST /api/sales/{eventId}/lottery", handlers.Sales.RunLottery)

	mux.HandleFunc("GET /api/listings", handlers.Listings.ListOpen)
	mux.HandleFunc("POST /api/listings", handlers.Listings.CreateListing)
	mux.HandleFunc("DELETE /api/listings", handlers.Listings.ClearListings)
	mux.HandleFunc("POST /api/listings/{id}/purchase", handlers.Listings.Purchase)
	mux.HandleFunc("DELETE /api/listings/{id}", handlers.Listings.CancelListing)
	mux.HandleFunc("GET /api/listings/sellers/{address}", handlers.Listings.ListBySeller)
	mux.HandleFunc("GET /api/transfers/sellers/{address}", handlers.Listings.SellerObligations)
	mux.HandleFunc("POST /api/transfers/{id}/complete", handlers.Listings.CompleteTransfer)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Health stays outside auth so load balancers can probe it.
	root := http.NewServeMux()
	root.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	root.Handle("/", middleware.Auth(cfg.APIKey)(mux))

	var h http.Handler = root
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
