package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/rental-billing/internal/model"
)

type sequenceKey struct {
	issuerID string
	series   string
}

// MemoryRepository хранит данные в памяти процесса. Используется, когда DATABASE_URI не задан, и в тестах.
type MemoryRepository struct {
	mu        sync.Mutex
	now       func() time.Time
	sales     map[uuid.UUID]*model.Sale
	documents map[uuid.UUID]*model.FiscalDocument
	sequences map[sequenceKey]*model.SequenceCounter
	issuers   map[string]*model.IssuerConfig
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:       time.Now,
		sales:     make(map[uuid.UUID]*model.Sale),
		documents: make(map[uuid.UUID]*model.FiscalDocument),
		sequences: make(map[sequenceKey]*model.SequenceCounter),
		issuers:   make(map[string]*model.IssuerConfig),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// Ping всегда успешен.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) activeHouseSales(houseID string) []model.Sale {
	var res []model.Sale
	for _, s := range r.sales {
		if s.HouseID == houseID && s.Status != model.SaleStatusCancelled {
			res = append(res, *s)
		}
	}
	sortSales(res)
	return res
}

func sortSales(sales []model.Sale) {
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].Stay.CheckIn.Before(sales[j].Stay.CheckIn)
	})
}

// CreateSale сохраняет новый договор, если guard разрешает запись.
func (r *MemoryRepository) CreateSale(ctx context.Context, s *model.Sale, guard Guard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[s.ID]; ok {
		return ErrSaleExists
	}
	if guard != nil {
		if err := guard(r.activeHouseSales(s.HouseID)); err != nil {
			return err
		}
	}

	now := r.now()
	s.CreatedAt, s.UpdatedAt = now, now
	c := *s
	r.sales[s.ID] = &c
	return nil
}

// UpdateSale перезаписывает базовые и производные поля договора, не трогая статус.
func (r *MemoryRepository) UpdateSale(ctx context.Context, s *model.Sale, guard Guard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sales[s.ID]
	if !ok {
		return ErrSaleNotFound
	}

	if guard != nil {
		if err := guard(r.activeHouseSales(s.HouseID)); err != nil {
			return err
		}
	}

	s.Status = current.Status
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = r.now()
	c := *s
	r.sales[s.ID] = &c
	return nil
}

// UpdateSaleStatus меняет статус договора, проверяя допустимость перехода.
func (r *MemoryRepository) UpdateSaleStatus(ctx context.Context, id uuid.UUID, next model.SaleStatus) (*model.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	if !s.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidSaleTransition, s.Status, next)
	}

	s.Status = next
	s.UpdatedAt = r.now()
	c := *s
	return &c, nil
}

// GetSale возвращает договор по идентификатору.
func (r *MemoryRepository) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	c := *s
	return &c, nil
}

// ListHouseSales возвращает договоры дома, упорядоченные по дате заезда.
func (r *MemoryRepository) ListHouseSales(ctx context.Context, houseID string, includeCancelled bool) ([]model.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Sale
	for _, s := range r.sales {
		if s.HouseID != houseID {
			continue
		}
		if !includeCancelled && s.Status == model.SaleStatusCancelled {
			continue
		}
		res = append(res, *s)
	}
	sortSales(res)
	return res, nil
}

// NextNumber увеличивает счётчик пары (эмитент, серия) и возвращает новый номер.
func (r *MemoryRepository) NextNumber(ctx context.Context, issuerID, series string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := sequenceKey{issuerID: issuerID, series: series}
	c, ok := r.sequences[key]
	if !ok {
		c = &model.SequenceCounter{IssuerID: issuerID, Series: series}
		r.sequences[key] = c
	}
	c.LastNumber++
	c.LastAllocatedAt = r.now()
	return c.LastNumber, nil
}

// GetSequence возвращает состояние счётчика, для неизвестной пары нулевой.
func (r *MemoryRepository) GetSequence(ctx context.Context, issuerID, series string) (*model.SequenceCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sequences[sequenceKey{issuerID: issuerID, series: series}]; ok {
		cp := *c
		return &cp, nil
	}
	return &model.SequenceCounter{IssuerID: issuerID, Series: series}, nil
}

// GetOrCreateIssuerConfig возвращает настройки эмитента, создавая defaults при первом обращении.
func (r *MemoryRepository) GetOrCreateIssuerConfig(ctx context.Context, defaults model.IssuerConfig) (*model.IssuerConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.issuers[defaults.IssuerID]; ok {
		cp := *c
		return &cp, false, nil
	}

	now := r.now()
	defaults.CreatedAt, defaults.UpdatedAt = now, now
	r.issuers[defaults.IssuerID] = &defaults
	cp := defaults
	return &cp, true, nil
}

// SaveIssuerConfig создаёт или обновляет настройки эмитента.
func (r *MemoryRepository) SaveIssuerConfig(ctx context.Context, c *model.IssuerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c.CreatedAt = now
	if existing, ok := r.issuers[c.IssuerID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	c.UpdatedAt = now
	cp := *c
	r.issuers[c.IssuerID] = &cp
	return nil
}

// CreateDocument сохраняет новый фискальный документ.
func (r *MemoryRepository) CreateDocument(ctx context.Context, d *model.FiscalDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.documents {
		if existing.IssuerID == d.IssuerID && existing.Series == d.Series && existing.Number == d.Number {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, d.Code)
		}
	}

	now := r.now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.documents[d.ID] = cloneDocument(d)
	return nil
}

// GetDocument возвращает фискальный документ по идентификатору.
func (r *MemoryRepository) GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneDocument(d), nil
}

// ListSaleDocuments возвращает документы договора в порядке создания.
func (r *MemoryRepository) ListSaleDocuments(ctx context.Context, saleID uuid.UUID) ([]model.FiscalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.FiscalDocument
	for _, d := range r.documents {
		if d.SaleID == saleID {
			res = append(res, *cloneDocument(d))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].Number < res[j].Number
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// BeginProcessing переводит документ из pending или error в processing.
// Если документ в другом статусе, возвращает его текущее состояние и started=false.
func (r *MemoryRepository) BeginProcessing(ctx context.Context, id uuid.UUID, at time.Time) (*model.FiscalDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.documents[id]
	if !ok {
		return nil, false, ErrDocumentNotFound
	}
	if !d.Status.CanTransition(model.DocumentStatusProcessing) {
		return cloneDocument(d), false, nil
	}

	d.Status = model.DocumentStatusProcessing
	attempt := at
	d.LastAttemptAt = &attempt
	d.UpdatedAt = r.now()
	return cloneDocument(d), true, nil
}

// FinishProcessing фиксирует результат обработки документа, находящегося в processing.
func (r *MemoryRepository) FinishProcessing(ctx context.Context, d *model.FiscalDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.documents[d.ID]
	if !ok {
		return ErrDocumentNotFound
	}
	if current.Status != model.DocumentStatusProcessing {
		return ErrStaleDocument
	}

	d.UpdatedAt = r.now()
	r.documents[d.ID] = cloneDocument(d)
	return nil
}

// CancelDocument отменяет документ в любом статусе, кроме cancelled.
func (r *MemoryRepository) CancelDocument(ctx context.Context, id uuid.UUID, reason string) (*model.FiscalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	if d.Status == model.DocumentStatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	d.Status = model.DocumentStatusCancelled
	d.CancelReason = reason
	d.UpdatedAt = r.now()
	return cloneDocument(d), nil
}
