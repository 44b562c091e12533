package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wayfare/internal/config"
	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/export"
	"wayfare/internal/gateway"
	"wayfare/internal/metrics"
	"wayfare/internal/service"
)

// HTTPServer exposes the booking, payment, notification and wallet API.
type HTTPServer struct {
	cfg           config.APIConfig
	auth          *Authenticator
	identity      *service.IdentityService
	bookings      *service.BookingService
	payments      *service.PaymentService
	invoices      *service.InvoiceService
	notifications *service.NotificationService
	wallets       *service.WalletService
	store         domain.Store
	exports       *export.Service
	coord         domain.CoordinationRepository
	server        *http.Server
	log           zerolog.Logger
}

// Services bundles everything the HTTP layer dispatches to.
type Services struct {
	Identity      *service.IdentityService
	Bookings      *service.BookingService
	Payments      *service.PaymentService
	Invoices      *service.InvoiceService
	Notifications *service.NotificationService
	Wallets       *service.WalletService
	Store         domain.Store
	Exports       *export.Service
	Coordination  domain.CoordinationRepository
}

func NewHTTPServer(cfg config.APIConfig, svcs Services, log zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:           cfg,
		auth:          NewAuthenticator(cfg.Auth),
		identity:      svcs.Identity,
		bookings:      svcs.Bookings,
		payments:      svcs.Payments,
		invoices:      svcs.Invoices,
		notifications: svcs.Notifications,
		wallets:       svcs.Wallets,
		store:         svcs.Store,
		exports:       svcs.Exports,
		coord:         svcs.Coordination,
		log:           log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	mux.HandleFunc("POST /api/v1/auth/register", srv.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", srv.handleLogin)

	mux.HandleFunc("GET /api/v1/packages", srv.handleListPackages)
	mux.HandleFunc("GET /api/v1/packages/{id}", srv.handleGetPackage)
	mux.HandleFunc("POST /api/v1/packages", requireAdmin(srv.handleUpsertPackage))
	mux.HandleFunc("DELETE /api/v1/packages/{id}", requireAdmin(srv.handleDeactivatePackage))

	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", requireAdmin(srv.handleListBookings))
	mux.HandleFunc("GET /api/v1/bookings/export", requireAdmin(srv.handleExportBookings))
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", requireAdmin(srv.handlePatchBooking))
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", requireAuth(srv.handleCancelBooking))
	mux.HandleFunc("POST /api/v1/bookings/{id}/settle", srv.handleSettle)
	mux.HandleFunc("GET /api/v1/bookings/{id}/payments", requireAdmin(srv.handleListBookingPayments))

	mux.HandleFunc("GET /api/v1/invoices/{bookingId}", srv.handleGetInvoice)
	mux.HandleFunc("GET /api/v1/invoices/{bookingId}/pdf", srv.handleInvoicePDF)

	mux.HandleFunc("GET /api/v1/notifications", srv.handleListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/{scope}/read-all", srv.handleMarkAllRead)

	mux.HandleFunc("GET /api/v1/wallets/{email}", requireAuth(srv.handleGetWallet))
	mux.HandleFunc("PATCH /api/v1/wallets/{email}", requireAdmin(srv.handlePatchWallet))

	limiter := newRateLimiter(cfg.RateLimit)
	handler := srv.requestIDMiddleware(srv.loggingMiddleware(srv.auth.Middleware(limiter.Wrap(mux))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler exposes the routed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := normalizeRoute(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(dur.Seconds())

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// normalizeRoute collapses path parameters so metric labels stay bounded.
func normalizeRoute(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 4 {
		return path
	}
	switch segments[2] {
	case "bookings", "invoices", "wallets", "notifications", "packages":
		if segments[3] != "export" {
			segments[3] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "booking already settled")
	case errors.Is(err, database.ErrBookingNotSettleable):
		writeError(w, http.StatusConflict, "booking cannot be settled in its current status")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "booking was modified concurrently, retry")
	case errors.Is(err, database.ErrPackageInactive):
		writeError(w, http.StatusBadRequest, "package is not active")
	case errors.Is(err, database.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient wallet balance")
	case errors.Is(err, service.ErrSettlementInProgress):
		writeError(w, http.StatusConflict, "settlement already in progress")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, gateway.ErrDeclined):
		writeError(w, http.StatusPaymentRequired, "payment declined by gateway")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "payment gateway timed out")
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
