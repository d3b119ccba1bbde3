// Package service реализует бизнес-логику биллинга: договоры аренды и выставление фискальных документов.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/rental-billing/internal/gateway"
	"github.com/mmeshcher/rental-billing/internal/metrics"
	"github.com/mmeshcher/rental-billing/internal/model"
	"github.com/mmeshcher/rental-billing/internal/repository"
)

var (
	// ErrSaleNotBillable возвращается, если по договору в текущем статусе нельзя выставить документ.
	ErrSaleNotBillable = errors.New("sale is not billable in its current status")
	// ErrDocumentCancelled возвращается при попытке выставить отменённый документ.
	ErrDocumentCancelled = errors.New("fiscal document is cancelled")
	// ErrDocumentRejected возвращается при попытке повторно выставить отклонённый документ.
	ErrDocumentRejected = errors.New("fiscal document was rejected, create a new one")
	// ErrIssueInProgress возвращается, если документ уже обрабатывается другим вызовом.
	ErrIssueInProgress = errors.New("fiscal document issue already in progress")
	// ErrUnavailable возвращается, если период проживания пересекается с другим договором дома.
	ErrUnavailable = errors.New("house is not available for the requested period")
	// ErrInvalidTransition возвращается при недопустимой смене статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateSale(ctx context.Context, s *model.Sale, guard repository.Guard) error
	UpdateSale(ctx context.Context, s *model.Sale, guard repository.Guard) error
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, next model.SaleStatus) (*model.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	ListHouseSales(ctx context.Context, houseID string, includeCancelled bool) ([]model.Sale, error)

	NextNumber(ctx context.Context, issuerID, series string) (int64, error)
	GetSequence(ctx context.Context, issuerID, series string) (*model.SequenceCounter, error)

	GetOrCreateIssuerConfig(ctx context.Context, defaults model.IssuerConfig) (*model.IssuerConfig, bool, error)
	SaveIssuerConfig(ctx context.Context, c *model.IssuerConfig) error

	CreateDocument(ctx context.Context, d *model.FiscalDocument) error
	GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	ListSaleDocuments(ctx context.Context, saleID uuid.UUID) ([]model.FiscalDocument, error)
	BeginProcessing(ctx context.Context, id uuid.UUID, at time.Time) (*model.FiscalDocument, bool, error)
	FinishProcessing(ctx context.Context, d *model.FiscalDocument) error
	CancelDocument(ctx context.Context, id uuid.UUID, reason string) (*model.FiscalDocument, error)
}

// Authorizer описывает контракт фискального органа.
type Authorizer interface {
	Authorize(ctx context.Context, r gateway.Request) (*gateway.Response, error)
}

// Gateways связывает среды эмитентов с клиентами фискального органа.
type Gateways struct {
	Sandbox    Authorizer
	Production Authorizer
}

// Options содержит значения по умолчанию для автоматически создаваемых настроек эмитента.
type Options struct {
	DefaultTaxRate    decimal.Decimal
	DefaultRegionCode string
	Now               func() time.Time
}

// Service содержит бизнес-логику биллинга.
type Service struct {
	repo     Repository
	gateways Gateways
	logger   *zap.Logger
	metrics  *metrics.Metrics

	defaultTaxRate    decimal.Decimal
	defaultRegionCode string
	now               func() time.Time
}

// NewService создаёт сервис с указанным репозиторием, шлюзами фискального органа, логгером и метриками.
func NewService(repo Repository, gateways Gateways, logger *zap.Logger, m *metrics.Metrics, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultRegionCode == "" {
		opts.DefaultRegionCode = "35"
	}

	return &Service{
		repo:              repo,
		gateways:          gateways,
		logger:            logger,
		metrics:           m,
		defaultTaxRate:    opts.DefaultTaxRate,
		defaultRegionCode: opts.DefaultRegionCode,
		now:               opts.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
