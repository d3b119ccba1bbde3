// Package handler содержит HTTP-обработчики API сервиса биллинга.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/rental-billing/internal/model"
	"github.com/mmeshcher/rental-billing/internal/repository"
	"github.com/mmeshcher/rental-billing/internal/service"
	"github.com/mmeshcher/rental-billing/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	CreateSale(ctx context.Context, sale *model.Sale) (*model.Sale, error)
	UpdateSale(ctx context.Context, sale *model.Sale) (*model.Sale, error)
	ChangeSaleStatus(ctx context.Context, id uuid.UUID, next model.SaleStatus) (*model.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	ListHouseSales(ctx context.Context, houseID string, includeCancelled bool) ([]model.Sale, error)
	CheckAvailability(ctx context.Context, houseID string, stay model.StayPeriod, exclude uuid.UUID) (bool, error)

	CreateDocument(ctx context.Context, saleID uuid.UUID, issuerID string) (*model.FiscalDocument, error)
	Issue(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.FiscalDocument, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	ListSaleDocuments(ctx context.Context, saleID uuid.UUID) ([]model.FiscalDocument, error)

	GetIssuerConfig(ctx context.Context, issuerID string) (*model.IssuerConfig, error)
	SaveIssuerConfig(ctx context.Context, cfg *model.IssuerConfig) (*model.IssuerConfig, error)
	NextNumber(ctx context.Context, issuerID, series string) (int64, error)
	GetSequence(ctx context.Context, issuerID, series string) (*model.SequenceCounter, error)
}

// Handler реализует HTTP-обработчики API сервиса биллинга.
type Handler struct {
	service Service
	logger  *zap.Logger
	metrics http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler обслуживает /metrics; nil отключает маршрут.
func NewHandler(s Service, logger *zap.Logger, metricsHandler http.Handler) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		metrics: metricsHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError переводит ошибку сервиса в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case validation.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrSaleNotFound), errors.Is(err, repository.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDocumentCancelled),
		errors.Is(err, service.ErrDocumentRejected),
		errors.Is(err, service.ErrIssueInProgress),
		errors.Is(err, service.ErrSaleNotBillable),
		errors.Is(err, repository.ErrDuplicateNumber),
		errors.Is(err, repository.ErrSaleExists):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Ping проверяет доступность хранилища.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("ping storage error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type saleRequest struct {
	HouseID          string                `json:"house_id"`
	ClientName       string                `json:"client_name"`
	ClientTaxID      string                `json:"client_tax_id"`
	CheckIn          time.Time             `json:"check_in"`
	CheckOut         time.Time             `json:"check_out"`
	Guests           int                   `json:"guests"`
	ContractValue    decimal.Decimal       `json:"contract_value"`
	Discount         decimal.Decimal       `json:"discount"`
	HousekeeperValue decimal.Decimal       `json:"housekeeper_value"`
	ConciergeValue   decimal.Decimal       `json:"concierge_value"`
	AdditionalSales  model.AdditionalSales `json:"additional_sales"`
	Status           model.SaleStatus      `json:"status,omitempty"`
}

func (req saleRequest) toModel() *model.Sale {
	return &model.Sale{
		HouseID:          req.HouseID,
		ClientName:       req.ClientName,
		ClientTaxID:      req.ClientTaxID,
		Stay:             model.StayPeriod{CheckIn: req.CheckIn, CheckOut: req.CheckOut},
		Guests:           req.Guests,
		ContractValue:    req.ContractValue,
		Discount:         req.Discount,
		HousekeeperValue: req.HousekeeperValue,
		ConciergeValue:   req.ConciergeValue,
		Additional:       req.AdditionalSales,
		Status:           req.Status,
	}
}

type saleResponse struct {
	ID               uuid.UUID             `json:"id"`
	HouseID          string                `json:"house_id"`
	ClientName       string                `json:"client_name,omitempty"`
	ClientTaxID      string                `json:"client_tax_id,omitempty"`
	CheckIn          string                `json:"check_in"`
	CheckOut         string                `json:"check_out"`
	Guests           int                   `json:"guests"`
	ContractValue    decimal.Decimal       `json:"contract_value"`
	Discount         decimal.Decimal       `json:"discount"`
	HousekeeperValue decimal.Decimal       `json:"housekeeper_value"`
	ConciergeValue   decimal.Decimal       `json:"concierge_value"`
	AdditionalSales  model.AdditionalSales `json:"additional_sales"`
	Status           model.SaleStatus      `json:"status"`
	model.SaleTotals
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newSaleResponse(s *model.Sale) saleResponse {
	return saleResponse{
		ID:               s.ID,
		HouseID:          s.HouseID,
		ClientName:       s.ClientName,
		ClientTaxID:      s.ClientTaxID,
		CheckIn:          s.Stay.CheckIn.Format(time.RFC3339),
		CheckOut:         s.Stay.CheckOut.Format(time.RFC3339),
		Guests:           s.Guests,
		ContractValue:    s.ContractValue,
		Discount:         s.Discount,
		HousekeeperValue: s.HousekeeperValue,
		ConciergeValue:   s.ConciergeValue,
		AdditionalSales:  s.Additional,
		Status:           s.Status,
		SaleTotals:       s.Totals,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        s.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateSale создаёт договор аренды.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	sale, err := h.service.CreateSale(r.Context(), req.toModel())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSaleResponse(sale))
}

// UpdateSale заменяет базовые поля договора.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "saleID")
	if !ok {
		badRequest(w, "invalid sale id")
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	s := req.toModel()
	s.ID = id

	sale, err := h.service.UpdateSale(r.Context(), s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSaleResponse(sale))
}

type statusRequest struct {
	Status model.SaleStatus `json:"status"`
}

// ChangeSaleStatus меняет статус договора.
func (h *Handler) ChangeSaleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "saleID")
	if !ok {
		badRequest(w, "invalid sale id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	sale, err := h.service.ChangeSaleStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSaleResponse(sale))
}

// GetSale возвращает договор.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "saleID")
	if !ok {
		badRequest(w, "invalid sale id")
		return
	}

	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSaleResponse(sale))
}

// ListHouseSales возвращает договоры дома. ?include_cancelled=true добавляет отменённые.
func (h *Handler) ListHouseSales(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "houseID")
	includeCancelled := r.URL.Query().Get("include_cancelled") == "true"

	sales, err := h.service.ListHouseSales(r.Context(), houseID, includeCancelled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(sales) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for i := range sales {
		resp = append(resp, newSaleResponse(&sales[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type availabilityResponse struct {
	HouseID   string `json:"house_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Available bool   `json:"available"`
}

// CheckAvailability проверяет, свободен ли дом на период из query-параметров check_in и check_out (RFC 3339).
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "houseID")
	q := r.URL.Query()

	checkIn, err := time.Parse(time.RFC3339, q.Get("check_in"))
	if err != nil {
		badRequest(w, "invalid check_in")
		return
	}
	checkOut, err := time.Parse(time.RFC3339, q.Get("check_out"))
	if err != nil {
		badRequest(w, "invalid check_out")
		return
	}

	exclude := uuid.Nil
	if v := q.Get("exclude"); v != "" {
		if exclude, err = uuid.Parse(v); err != nil {
			badRequest(w, "invalid exclude id")
			return
		}
	}

	stay := model.StayPeriod{CheckIn: checkIn, CheckOut: checkOut}
	available, err := h.service.CheckAvailability(r.Context(), houseID, stay, exclude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		HouseID:   houseID,
		CheckIn:   checkIn.Format(time.RFC3339),
		CheckOut:  checkOut.Format(time.RFC3339),
		Available: available,
	})
}
