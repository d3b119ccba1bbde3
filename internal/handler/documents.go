package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/rental-billing/internal/model"
)

type documentResponse struct {
	ID            uuid.UUID             `json:"id"`
	SaleID        uuid.UUID             `json:"sale_id"`
	IssuerID      string                `json:"issuer_id"`
	Number        int64                 `json:"number"`
	Series        string                `json:"series"`
	Code          string                `json:"code"`
	AccessKey     string                `json:"access_key"`
	Issuer        model.Party           `json:"issuer"`
	Recipient     model.Party           `json:"recipient"`
	Amounts       model.DocumentAmounts `json:"amounts"`
	Status        model.DocumentStatus  `json:"status"`
	Authorization *model.Authorization  `json:"authorization,omitempty"`
	FailureReason string                `json:"failure_reason,omitempty"`
	FailureCount  int                   `json:"failure_count"`
	LastAttemptAt string                `json:"last_attempt_at,omitempty"`
	CancelReason  string                `json:"cancel_reason,omitempty"`
	IssuedAt      string                `json:"issued_at"`
}

func newDocumentResponse(d *model.FiscalDocument) documentResponse {
	resp := documentResponse{
		ID:            d.ID,
		SaleID:        d.SaleID,
		IssuerID:      d.IssuerID,
		Number:        d.Number,
		Series:        d.Series,
		Code:          d.Code,
		AccessKey:     d.AccessKey,
		Issuer:        d.Issuer,
		Recipient:     d.Recipient,
		Amounts:       d.Amounts,
		Status:        d.Status,
		Authorization: d.Authorization,
		FailureReason: d.FailureReason,
		FailureCount:  d.FailureCount,
		CancelReason:  d.CancelReason,
		IssuedAt:      d.IssuedAt.Format(time.RFC3339),
	}
	if d.LastAttemptAt != nil {
		resp.LastAttemptAt = d.LastAttemptAt.Format(time.RFC3339)
	}
	return resp
}

type createDocumentRequest struct {
	IssuerID string `json:"issuer_id"`
}

// CreateDocument создаёт фискальный документ по договору.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	saleID, ok := uuidParam(r, "saleID")
	if !ok {
		badRequest(w, "invalid sale id")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), saleID, req.IssuerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newDocumentResponse(doc))
}

// ListSaleDocuments возвращает документы договора.
func (h *Handler) ListSaleDocuments(w http.ResponseWriter, r *http.Request) {
	saleID, ok := uuidParam(r, "saleID")
	if !ok {
		badRequest(w, "invalid sale id")
		return
	}

	docs, err := h.service.ListSaleDocuments(r.Context(), saleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(docs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]documentResponse, 0, len(docs))
	for i := range docs {
		resp = append(resp, newDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDocument возвращает фискальный документ.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "documentID")
	if !ok {
		badRequest(w, "invalid document id")
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(doc))
}

// IssueDocument отправляет документ в фискальный орган.
// Сбой или отказ шлюза сохраняется в документе и возвращается с кодом 200.
func (h *Handler) IssueDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "documentID")
	if !ok {
		badRequest(w, "invalid document id")
		return
	}

	doc, err := h.service.Issue(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(doc))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelDocument отменяет документ.
func (h *Handler) CancelDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "documentID")
	if !ok {
		badRequest(w, "invalid document id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	doc, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(doc))
}

// GetIssuerConfig возвращает настройки эмитента.
func (h *Handler) GetIssuerConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetIssuerConfig(r.Context(), chi.URLParam(r, "issuerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// SaveIssuerConfig сохраняет настройки эмитента. Идентификатор берётся из пути.
func (h *Handler) SaveIssuerConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.IssuerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	cfg.IssuerID = chi.URLParam(r, "issuerID")

	saved, err := h.service.SaveIssuerConfig(r.Context(), &cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

type nextNumberResponse struct {
	IssuerID string `json:"issuer_id"`
	Series   string `json:"series"`
	Number   int64  `json:"number"`
}

// NextNumber выдаёт следующий номер серии эмитента.
func (h *Handler) NextNumber(w http.ResponseWriter, r *http.Request) {
	issuerID := chi.URLParam(r, "issuerID")
	series := chi.URLParam(r, "series")

	number, err := h.service.NextNumber(r.Context(), issuerID, series)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nextNumberResponse{IssuerID: issuerID, Series: series, Number: number})
}

type sequenceResponse struct {
	IssuerID        string `json:"issuer_id"`
	Series          string `json:"series"`
	LastNumber      int64  `json:"last_number"`
	LastAllocatedAt string `json:"last_allocated_at,omitempty"`
}

// GetSequence возвращает последний выданный номер серии эмитента.
func (h *Handler) GetSequence(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetSequence(r.Context(), chi.URLParam(r, "issuerID"), chi.URLParam(r, "series"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := sequenceResponse{IssuerID: c.IssuerID, Series: c.Series, LastNumber: c.LastNumber}
	if !c.LastAllocatedAt.IsZero() {
		resp.LastAllocatedAt = c.LastAllocatedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
