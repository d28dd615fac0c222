package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"procurement-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Handler serves the HTTP API on top of the ApplicationService.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
	validate  *validator.Validate
	logger    logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, logger logrus.FieldLogger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		validate:  validator.New(),
		logger:    logger.WithField("component", "http"),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.logger))
	r.Use(Recoverer(h.logger))
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)
		r.Get("/api/migration/phase", h.apiMigrationPhase)

		// ── Eligibility ───────────────────────────────────────────────────────
		r.Get("/api/employees/{id}/eligibility", h.apiGetEligibility)

		// ── Orders & shipments ────────────────────────────────────────────────
		r.With(RequireRole(RoleEmployee, RoleCompany)).Post("/api/orders", h.apiPlaceOrder)
		r.Get("/api/orders/{id}", h.apiGetOrder)
		r.With(RequireRole(RoleCompany)).Post("/api/orders/{id}/approve", h.apiApproveOrder)
		r.With(RequireRole(RoleVendor)).Post("/api/orders/{id}/dispatch", h.apiDispatchOrder)
		r.With(RequireRole(RoleVendor, RoleCompany)).Post("/api/shipments/{id}/deliver", h.apiDeliverShipment)
		r.With(RequireRole(RoleCompany)).Post("/api/returns/{id}/approve", h.apiApproveReturn)

		// ── GRNs & invoices ───────────────────────────────────────────────────
		r.With(RequireRole(RoleVendor)).Post("/api/grns", h.apiRaiseGRN)
		r.Get("/api/grns/{id}", h.apiGetGRN)
		r.With(RequireRole(RoleCompany)).Post("/api/grns/{id}/acknowledge", h.apiAcknowledgeGRN)
		r.With(RequireRole(RoleCompany)).Post("/api/grns/{id}/approve", h.apiApproveGRN)
		r.Get("/api/grns/{id}/invoice-eligibility", h.apiInvoiceEligibility)
		r.With(RequireRole(RoleVendor)).Post("/api/grns/{id}/invoices", h.apiRaiseInvoice)
		r.With(RequireRole(RoleCompany)).Post("/api/invoices/{id}/approve", h.apiApproveInvoice)
		r.With(RequireRole(RoleCompany)).Post("/api/invoices/{id}/reject", h.apiRejectInvoice)
	})

	return r
}

// health returns service status and the migration phase in force.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Phase  string `json:"phase"`
	}
	writeJSON(w, response{Status: "ok", Phase: string(h.svc.MigrationPhase().Phase)})
}

func (h *Handler) apiMigrationPhase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.MigrationPhase())
}

// pathID extracts the {id} URL parameter.
func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// decodeJSON decodes the request body into v and validates it. Returns false and
// writes an error response on failure: HTTP 413 when the body exceeds the size limit
// set by RequestBodyLimit, HTTP 400 for all other decode and validation errors.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
