package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/allocation/internal/auth"
	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/query"
	"github.com/example/allocation/internal/service"
)

// UnitOfWorkFactory hands each request its own transactional scope.
type UnitOfWorkFactory func() service.UnitOfWork

type Handlers struct {
	bus          *service.MessageBus
	newUOW       UnitOfWorkFactory
	queryHandler *query.Handler
	jwtService   *auth.JWTService
	passwordHash string
}

func NewHandlers(
	bus *service.MessageBus,
	newUOW UnitOfWorkFactory,
	queryHandler *query.Handler,
	jwtService *auth.JWTService,
	passwordHash string,
) *Handlers {
	return &Handlers{
		bus:          bus,
		newUOW:       newUOW,
		queryHandler: queryHandler,
		jwtService:   jwtService,
		passwordHash: passwordHash,
	}
}

// Login exchanges the operator password for a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator string `json:"operator"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Operator == "" || !auth.VerifyOperatorPassword(req.Password, h.passwordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.Operator, "operator")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// AddBatch records a purchased batch of stock.
func (h *Handlers) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
		Sku string `json:"sku"`
		Qty int    `json:"qty"`
		ETA string `json:"eta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Qty <= 0 {
		http.Error(w, "qty must be positive", http.StatusBadRequest)
		return
	}

	var eta time.Time
	if req.ETA != "" {
		parsed, err := time.Parse("2006-01-02", req.ETA)
		if err != nil {
			http.Error(w, "eta must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		eta = parsed
	}

	cmd := domain.CreateBatch{Ref: req.Ref, Sku: req.Sku, Qty: req.Qty, ETA: eta}
	if _, err := h.bus.Handle(r.Context(), cmd, h.newUOW()); err != nil {
		respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "Batch added"})
}

// Allocate places an order line and reports the winning batch.
func (h *Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	var cmd domain.Allocate
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cmd.Qty <= 0 {
		http.Error(w, "qty must be positive", http.StatusBadRequest)
		return
	}

	results, err := h.bus.Handle(r.Context(), cmd, h.newUOW())
	if err != nil {
		respondCommandError(w, err)
		return
	}

	batchref, _ := results[0].(string)
	respondJSON(w, http.StatusCreated, map[string]string{"batchref": batchref})
}

// ChangeBatchQuantity corrects a batch's purchased quantity.
func (h *Handlers) ChangeBatchQuantity(w http.ResponseWriter, r *http.Request) {
	ref := extractPathParam(r.URL.Path, "/batches/")
	ref = strings.TrimSuffix(ref, "/quantity")

	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Qty < 0 {
		http.Error(w, "qty must not be negative", http.StatusBadRequest)
		return
	}

	cmd := domain.ChangeBatchQuantity{Ref: ref, Qty: req.Qty}
	if _, err := h.bus.Handle(r.Context(), cmd, h.newUOW()); err != nil {
		respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Quantity updated"})
}

// GetAllocations reads an order's allocations from the view.
func (h *Handlers) GetAllocations(w http.ResponseWriter, r *http.Request) {
	orderID := extractPathParam(r.URL.Path, "/allocations/")
	allocations := h.queryHandler.Allocations(r.Context(), orderID)
	if len(allocations) == 0 {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, allocations)
}

// respondCommandError maps the error taxonomy onto status codes: domain
// rule violations and unknown SKUs are the client's problem, unknown batch
// references read as missing resources, anything else is ours.
func respondCommandError(w http.ResponseWriter, err error) {
	var allocErr *domain.AllocationError
	switch {
	case errors.As(err, &allocErr):
		http.Error(w, allocErr.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidSku):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnknownBatch):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
