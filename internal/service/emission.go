package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/rental-billing/internal/accesskey"
	"github.com/mmeshcher/rental-billing/internal/gateway"
	"github.com/mmeshcher/rental-billing/internal/metrics"
	"github.com/mmeshcher/rental-billing/internal/model"
	"github.com/mmeshcher/rental-billing/internal/repository"
	"github.com/mmeshcher/rental-billing/internal/validation"
)

// DocumentCode формирует код документа: серия и номер, дополненный нулями до 9 цифр.
func DocumentCode(series string, number int64) string {
	return fmt.Sprintf("%s%09d", series, number)
}

// MirrorAmounts переносит суммы договора в документ и начисляет налог по ставке rate.
func MirrorAmounts(sale *model.Sale, rate decimal.Decimal) model.DocumentAmounts {
	a := model.DocumentAmounts{
		DailyRate:          sale.ContractValue,
		Concierge:          sale.ConciergeValue,
		AdditionalServices: sale.Totals.TotalAdditionalSales,
		Discount:           sale.Discount,
		TaxRate:            rate,
	}
	a.Subtotal = a.DailyRate.Add(a.Concierge).Add(a.AdditionalServices).Sub(a.Discount)
	a.Tax = a.Subtotal.Mul(rate).Round(2)
	a.Total = a.Subtotal.Add(a.Tax)
	return a
}

// CreateDocument создаёт фискальный документ по договору в статусе pending.
// Номер выдаётся до сохранения; если выдать номер не удалось, документ не создаётся.
// При включённом автовыставлении документ сразу отправляется в фискальный орган.
func (s *Service) CreateDocument(ctx context.Context, saleID uuid.UUID, issuerID string) (*model.FiscalDocument, error) {
	if issuerID == "" {
		return nil, &validation.ValidationError{Err: validation.ErrMissingIssuer}
	}

	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if !sale.Status.Billable() {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotBillable, sale.Status)
	}

	cfg, err := s.GetIssuerConfig(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	keyInput := accesskey.Input{
		RegionCode:  cfg.RegionCode,
		IssuedAt:    issuedAt,
		IssuerTaxID: cfg.TaxID,
		Series:      cfg.DefaultSeries,
		Number:      1,
	}
	// Настройки ключа проверяются до выдачи номера.
	if _, err := accesskey.Base(keyInput); err != nil {
		return nil, &validation.ValidationError{Err: err, Details: "issuer " + issuerID}
	}

	number, err := s.NextNumber(ctx, issuerID, cfg.DefaultSeries)
	if err != nil {
		return nil, err
	}

	keyInput.Number = number
	key, err := accesskey.Generate(keyInput)
	if err != nil {
		return nil, fmt.Errorf("generate access key: %w", err)
	}

	doc := &model.FiscalDocument{
		ID:        uuid.New(),
		SaleID:    sale.ID,
		IssuerID:  issuerID,
		Number:    number,
		Series:    cfg.DefaultSeries,
		Code:      DocumentCode(cfg.DefaultSeries, number),
		AccessKey: key,
		Issuer:    model.Party{Name: cfg.Name, TaxID: cfg.TaxID},
		Recipient: model.Party{Name: sale.ClientName, TaxID: sale.ClientTaxID},
		Amounts:   MirrorAmounts(sale, cfg.TaxRate),
		Status:    model.DocumentStatusPending,
		IssuedAt:  issuedAt,
	}

	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("fiscal document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("sale_id", sale.ID.String()),
		zap.String("code", doc.Code),
		zap.String("status", string(doc.Status)),
	)

	if !cfg.AutoIssue {
		return doc, nil
	}

	issued, err := s.Issue(ctx, doc.ID)
	if err != nil {
		s.logger.Warn("auto issue failed",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return doc, nil
	}
	return issued, nil
}

// Issue отправляет документ в фискальный орган и фиксирует результат.
// Для авторизованного документа повторный вызов ничего не делает и возвращает сохранённый результат.
// Отказ и сбой шлюза сохраняются в документе и не возвращаются как ошибка.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	current, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if current.Status == model.DocumentStatusAuthorized {
		s.metrics.Emission(metrics.ResultNoop)
		return current, nil
	}
	if err := s.checkIssuable(current); err != nil {
		return nil, err
	}

	sale, err := s.repo.GetSale(ctx, current.SaleID)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	cfg, err := s.GetIssuerConfig(ctx, current.IssuerID)
	if err != nil {
		return nil, err
	}

	doc, started, err := s.repo.BeginProcessing(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("begin processing: %w", err)
	}
	if !started {
		if doc.Status == model.DocumentStatusAuthorized {
			s.metrics.Emission(metrics.ResultNoop)
			return doc, nil
		}
		if err := s.checkIssuable(doc); err != nil {
			return nil, err
		}
		return nil, ErrIssueInProgress
	}
	s.transition(doc, current.Status, model.DocumentStatusProcessing)

	failures := doc.FailureCount
	res, callErr := s.authorize(ctx, cfg.Environment, buildRequest(doc, sale))
	s.applyOutcome(doc, res, callErr)

	// Отмена ctx вызывающим не должна оставить документ в processing.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.repo.FinishProcessing(finishCtx, doc); err != nil {
		if errors.Is(err, repository.ErrStaleDocument) {
			return nil, fmt.Errorf("%w: changed during processing", ErrDocumentCancelled)
		}
		s.releaseProcessing(finishCtx, doc, failures, err)
		return nil, fmt.Errorf("finish processing: %w", err)
	}
	s.transition(doc, model.DocumentStatusProcessing, doc.Status)

	return doc, nil
}

// releaseProcessing переводит документ в error, если результат выпуска не удалось записать,
// чтобы выпуск можно было повторить. Номер, выданный органом, сохраняется в причине.
func (s *Service) releaseProcessing(ctx context.Context, doc *model.FiscalDocument, failures int, cause error) {
	why := "result not recorded: " + cause.Error()
	if doc.Authorization != nil {
		why = fmt.Sprintf("%s (authority number %s)", why, doc.Authorization.Number)
	}

	doc.Authorization = nil
	doc.FailureCount = failures
	s.fail(doc, model.DocumentStatusError, why)

	if err := s.repo.FinishProcessing(ctx, doc); err != nil {
		s.logger.Error("fiscal document left in processing",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.transition(doc, model.DocumentStatusProcessing, model.DocumentStatusError)
}

func (s *Service) checkIssuable(d *model.FiscalDocument) error {
	switch d.Status {
	case model.DocumentStatusPending, model.DocumentStatusError:
		return nil
	case model.DocumentStatusAuthorized:
		return fmt.Errorf("%w: already authorized", ErrInvalidTransition)
	case model.DocumentStatusProcessing:
		return ErrIssueInProgress
	case model.DocumentStatusCancelled:
		return ErrDocumentCancelled
	case model.DocumentStatusRejected:
		return ErrDocumentRejected
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, d.Status)
	}
}

func (s *Service) authorize(ctx context.Context, env model.Environment, req gateway.Request) (*gateway.Response, error) {
	var a Authorizer
	switch env {
	case model.EnvironmentProduction:
		a = s.gateways.Production
	case model.EnvironmentSandbox:
		a = s.gateways.Sandbox
	default:
		return nil, fmt.Errorf("unknown fiscal environment %q", env)
	}
	if a == nil {
		return nil, fmt.Errorf("fiscal gateway for %s environment is not configured", env)
	}
	return a.Authorize(ctx, req)
}

func (s *Service) applyOutcome(doc *model.FiscalDocument, res *gateway.Response, callErr error) {
	switch {
	case callErr != nil:
		s.fail(doc, model.DocumentStatusError, callErr.Error())
		s.metrics.Emission(metrics.ResultError)
	case res == nil:
		s.fail(doc, model.DocumentStatusError, "empty gateway response")
		s.metrics.Emission(metrics.ResultError)
	case res.Rejected:
		s.fail(doc, model.DocumentStatusRejected, reason(res, "rejected by fiscal authority"))
		s.metrics.Emission(metrics.ResultRejected)
	case !res.Success || res.AuthorityNumber == "":
		s.fail(doc, model.DocumentStatusError, reason(res, "fiscal authority returned failure"))
		s.metrics.Emission(metrics.ResultError)
	default:
		key := res.AccessKey
		if key == "" {
			key = doc.AccessKey
		}
		at := res.Timestamp
		if at.IsZero() {
			at = s.now()
		}
		doc.Status = model.DocumentStatusAuthorized
		doc.FailureReason = ""
		doc.Authorization = &model.Authorization{
			Number:       res.AuthorityNumber,
			AccessKey:    key,
			DocumentXML:  res.DocumentXML,
			DocumentPDF:  res.DocumentPDFURL,
			AuthorizedAt: at,
		}
		s.metrics.Emission(metrics.ResultAuthorized)
	}
}

func (s *Service) fail(doc *model.FiscalDocument, status model.DocumentStatus, why string) {
	doc.Status = status
	doc.FailureReason = why
	doc.FailureCount++
	s.logger.Warn("fiscal document issue failed",
		zap.String("document_id", doc.ID.String()),
		zap.String("status", string(status)),
		zap.Int("failure_count", doc.FailureCount),
		zap.String("reason", why),
	)
}

func reason(res *gateway.Response, fallback string) string {
	if res.Error != "" {
		return res.Error
	}
	return fallback
}

func buildRequest(doc *model.FiscalDocument, sale *model.Sale) gateway.Request {
	nights := sale.Totals.Nights
	if nights < 1 {
		nights = 1
	}
	unit := doc.Amounts.Subtotal.Div(decimal.NewFromInt(int64(nights))).Round(2)

	return gateway.Request{
		IssuerTaxID:    doc.Issuer.TaxID,
		Series:         doc.Series,
		Number:         doc.Number,
		AccessKey:      doc.AccessKey,
		RecipientTaxID: doc.Recipient.TaxID,
		RecipientName:  doc.Recipient.Name,
		Description:    fmt.Sprintf("Hospedagem %s - %d diária(s)", sale.HouseID, nights),
		Quantity:       nights,
		UnitValue:      unit,
		TotalValue:     doc.Amounts.Total,
		ICMSRate:       doc.Amounts.TaxRate,
		ICMSValue:      doc.Amounts.Tax,
		IssueDate:      doc.IssuedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) transition(doc *model.FiscalDocument, from, to model.DocumentStatus) {
	s.metrics.Transition(string(from), string(to))
	s.logger.Info("fiscal document transition",
		zap.String("document_id", doc.ID.String()),
		zap.String("from", string(from)),
		zap.String("status", string(to)),
	)
}

// Cancel отменяет документ с указанием причины. Фискальный орган не уведомляется;
// данные авторизации, если они есть, сохраняются.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, why string) (*model.FiscalDocument, error) {
	if why == "" {
		return nil, &validation.ValidationError{Err: validation.ErrMissingReason}
	}

	current, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc, err := s.repo.CancelDocument(ctx, id, why)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCancelled) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		return nil, fmt.Errorf("cancel document: %w", err)
	}
	s.transition(doc, current.Status, model.DocumentStatusCancelled)

	return doc, nil
}

// GetDocument возвращает фискальный документ по идентификатору.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	return s.repo.GetDocument(ctx, id)
}

// ListSaleDocuments возвращает документы, выставленные по договору.
func (s *Service) ListSaleDocuments(ctx context.Context, saleID uuid.UUID) ([]model.FiscalDocument, error) {
	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListSaleDocuments(ctx, saleID)
}
