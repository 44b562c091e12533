package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wayfare/internal/invoice"
	"wayfare/internal/models"
	"wayfare/internal/service"
)

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = time.Minute
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- auth ---

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	user, err := s.identity.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	token, err := s.auth.Issue(user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	// Per-account attempt counter slows credential stuffing across processes.
	if s.coord != nil {
		key := "login:" + strings.ToLower(strings.TrimSpace(body.Email))
		if ok, err := s.coord.CheckRateLimit(r.Context(), key, loginAttemptLimit, loginAttemptWindow); err == nil && !ok {
			writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}
	}

	user, err := s.identity.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	token, err := s.auth.Issue(user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// --- catalog ---

func (s *HTTPServer) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.store.GetActivePackages(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (s *HTTPServer) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.store.GetPackageByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *HTTPServer) handleUpsertPackage(w http.ResponseWriter, r *http.Request) {
	var pkg models.Package
	if !decodeBody(w, r, &pkg) {
		return
	}
	if strings.TrimSpace(pkg.ID) == "" || strings.TrimSpace(pkg.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if pkg.PricePerPerson < 0 {
		writeError(w, http.StatusBadRequest, "price_per_person must not be negative")
		return
	}

	if err := s.store.UpsertPackage(r.Context(), &pkg); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *HTTPServer) handleDeactivatePackage(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeactivatePackage(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// --- bookings ---

type createBookingRequest struct {
	PackageID        string                  `json:"package_id"`
	TravelDate       string                  `json:"travel_date"`
	Travelers        int                     `json:"travelers"`
	TravelersDetails []models.TravelerDetail `json:"travelers_details"`
	UserEmail        string                  `json:"user_email"`
	Notes            string                  `json:"notes"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if !decodeBody(w, r, &body) {
		return
	}

	// Logged-in customers always book for themselves.
	if c := claimsFrom(r); c != nil && c.Role != models.RoleAdmin {
		body.UserEmail = c.Email
	}

	booking, err := s.bookings.Create(r.Context(), service.CreateBookingInput{
		PackageID:        body.PackageID,
		TravelDate:       body.TravelDate,
		Travelers:        body.Travelers,
		TravelersDetails: body.TravelersDetails,
		UserEmail:        body.UserEmail,
		Notes:            body.Notes,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if booking.UserEmail != "" && claimsFrom(r) != nil && !canAccessEmail(r, booking.UserEmail) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	filter := models.BookingFilter{
		Status:   r.URL.Query().Get("status"),
		Query:    r.URL.Query().Get("q"),
		SortBy:   r.URL.Query().Get("sort_by"),
		SortDesc: r.URL.Query().Get("order") != "asc",
	}

	bookings, err := s.bookings.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

type patchBookingRequest struct {
	Status           *string                  `json:"status"`
	Notes            *string                  `json:"notes"`
	TravelDate       *string                  `json:"travel_date"`
	TravelersDetails *[]models.TravelerDetail `json:"travelers_details"`
}

func (s *HTTPServer) handlePatchBooking(w http.ResponseWriter, r *http.Request) {
	var body patchBookingRequest
	if !decodeBody(w, r, &body) {
		return
	}

	patch := models.BookingPatch{
		Status:           body.Status,
		Notes:            body.Notes,
		TravelersDetails: body.TravelersDetails,
	}
	if body.TravelDate != nil {
		parsed, err := time.Parse("2006-01-02", *body.TravelDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "travel_date must be YYYY-MM-DD")
			return
		}
		patch.TravelDate = &parsed
	}

	booking, err := s.bookings.Patch(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !isAdmin(r) && !canAccessEmail(r, booking.UserEmail) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}

	booking, err = s.bookings.Cancel(r.Context(), booking.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	filter := models.BookingFilter{
		Status: r.URL.Query().Get("status"),
		Query:  r.URL.Query().Get("q"),
	}
	data, name, err := s.exports.Bookings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- settlement ---

func (s *HTTPServer) handleSettle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method string `json:"method"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}

	payment, booking, err := s.payments.Settle(r.Context(), r.PathValue("id"), body.Method)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id": booking.ID,
		"payment_id": payment.ID,
		"status":     booking.Status,
		"amount":     payment.Amount,
	})
}

func (s *HTTPServer) handleListBookingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.payments.ListForBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// --- invoices ---

func (s *HTTPServer) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), r.PathValue("bookingId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), r.PathValue("bookingId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	data, name, err := invoice.Render(inv)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- notifications ---

func (s *HTTPServer) authorizeScope(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	scope = models.NormalizeScope(scope)
	if scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return "", false
	}

	if scope == models.ScopeAdmin {
		if !isAdmin(r) {
			writeError(w, http.StatusForbidden, "admin access required")
			return "", false
		}
		return scope, true
	}

	email, ok := strings.CutPrefix(scope, "customer:")
	if !ok {
		writeError(w, http.StatusBadRequest, "scope must be admin or customer:<email>")
		return "", false
	}
	if !canAccessEmail(r, email) {
		writeError(w, http.StatusForbidden, "not your feed")
		return "", false
	}
	return scope, true
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.authorizeScope(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}

	feed, err := s.notifications.List(r.Context(), scope)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": feed})
}

func (s *HTTPServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.authorizeScope(w, r, r.PathValue("scope"))
	if !ok {
		return
	}

	if err := s.notifications.MarkAllRead(r.Context(), scope); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- wallets ---

func (s *HTTPServer) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if !canAccessEmail(r, email) {
		writeError(w, http.StatusForbidden, "not your wallet")
		return
	}

	wallet, err := s.wallets.Get(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *HTTPServer) handlePatchWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind   string `json:"kind"`
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	email := r.PathValue("email")
	var (
		wallet *models.Wallet
		err    error
	)
	switch body.Kind {
	case models.TxCredit:
		wallet, err = s.wallets.Credit(r.Context(), email, body.Amount, body.Note)
	case models.TxDebit:
		wallet, err = s.wallets.Debit(r.Context(), email, body.Amount, body.Note)
	default:
		writeError(w, http.StatusBadRequest, "kind must be credit or debit")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
