package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rental-billing/internal/model"
)

func TestMemoryNextNumberSequential(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := r.NextNumber(ctx, "issuer-a", "1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := r.NextNumber(ctx, "issuer-a", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	otherIssuer, err := r.NextNumber(ctx, "issuer-b", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherIssuer)

	c, err := r.GetSequence(ctx, "issuer-a", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.LastNumber)

	empty, err := r.GetSequence(ctx, "issuer-c", "1")
	require.NoError(t, err)
	assert.Zero(t, empty.LastNumber)
}

func TestMemoryNextNumberConcurrent(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	const n = 200
	numbers := make([]int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			num, err := r.NextNumber(ctx, "issuer", "1")
			if err != nil {
				t.Errorf("NextNumber: %v", err)
				return
			}
			numbers[i] = num
		}(i)
	}
	wg.Wait()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, num := range numbers {
		assert.Equal(t, int64(i+1), num)
	}
}

func TestMemoryCreateSaleGuard(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	first := &model.Sale{ID: uuid.New(), HouseID: "house-1", Status: model.SaleStatusConfirmed}
	require.NoError(t, r.CreateSale(ctx, first, nil))

	errBusy := errors.New("busy")
	var seen []model.Sale
	second := &model.Sale{ID: uuid.New(), HouseID: "house-1", Status: model.SaleStatusConfirmed}
	err := r.CreateSale(ctx, second, func(existing []model.Sale) error {
		seen = existing
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	require.Len(t, seen, 1)
	assert.Equal(t, first.ID, seen[0].ID)

	_, err = r.GetSale(ctx, second.ID)
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestMemoryCreateSaleExistingID(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	first := &model.Sale{ID: uuid.New(), HouseID: "house-1", ClientName: "Maria", Status: model.SaleStatusConfirmed}
	require.NoError(t, r.CreateSale(ctx, first, nil))

	dup := &model.Sale{ID: first.ID, HouseID: "house-2", ClientName: "João", Status: model.SaleStatusPending}
	err := r.CreateSale(ctx, dup, nil)
	assert.ErrorIs(t, err, ErrSaleExists)

	stored, err := r.GetSale(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "house-1", stored.HouseID)
	assert.Equal(t, "Maria", stored.ClientName)
}

func TestMemorySaleStatus(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	s := &model.Sale{ID: uuid.New(), HouseID: "house-1", Status: model.SaleStatusPending}
	require.NoError(t, r.CreateSale(ctx, s, nil))

	updated, err := r.UpdateSaleStatus(ctx, s.ID, model.SaleStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusConfirmed, updated.Status)

	_, err = r.UpdateSaleStatus(ctx, s.ID, model.SaleStatusPending)
	assert.ErrorIs(t, err, ErrInvalidSaleTransition)

	_, err = r.UpdateSaleStatus(ctx, uuid.New(), model.SaleStatusConfirmed)
	assert.ErrorIs(t, err, ErrSaleNotFound)

	_, err = r.UpdateSaleStatus(ctx, s.ID, model.SaleStatusCancelled)
	require.NoError(t, err)

	active, err := r.ListHouseSales(ctx, "house-1", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := r.ListHouseSales(ctx, "house-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryUpdateSaleKeepsStatus(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	s := &model.Sale{ID: uuid.New(), HouseID: "house-1", Guests: 2, Status: model.SaleStatusConfirmed}
	require.NoError(t, r.CreateSale(ctx, s, nil))

	edit := &model.Sale{ID: s.ID, HouseID: "house-1", Guests: 4, Status: model.SaleStatusPending}
	require.NoError(t, r.UpdateSale(ctx, edit, nil))
	assert.Equal(t, model.SaleStatusConfirmed, edit.Status)

	got, err := r.GetSale(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Guests)

	err = r.UpdateSale(ctx, &model.Sale{ID: uuid.New(), HouseID: "house-1"}, nil)
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func newDocument(number int64) *model.FiscalDocument {
	return &model.FiscalDocument{
		ID:       uuid.New(),
		SaleID:   uuid.New(),
		IssuerID: "issuer",
		Series:   "1",
		Number:   number,
		Status:   model.DocumentStatusPending,
	}
}

func TestMemoryCreateDocumentDuplicateNumber(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, r.CreateDocument(ctx, newDocument(1)))
	err := r.CreateDocument(ctx, newDocument(1))
	assert.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestMemoryProcessingLifecycle(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	d := newDocument(1)
	require.NoError(t, r.CreateDocument(ctx, d))

	started, ok, err := r.BeginProcessing(ctx, d.ID, at)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.DocumentStatusProcessing, started.Status)
	require.NotNil(t, started.LastAttemptAt)
	assert.Equal(t, at, *started.LastAttemptAt)

	again, ok, err := r.BeginProcessing(ctx, d.ID, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.DocumentStatusProcessing, again.Status)

	started.Status = model.DocumentStatusAuthorized
	started.Authorization = &model.Authorization{Number: "A-1", AccessKey: "key"}
	require.NoError(t, r.FinishProcessing(ctx, started))

	assert.ErrorIs(t, r.FinishProcessing(ctx, started), ErrStaleDocument)

	// Возвращённая копия не связана с хранилищем.
	started.Authorization.Number = "mutated"
	stored, err := r.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", stored.Authorization.Number)

	_, ok, err = r.BeginProcessing(ctx, d.ID, at)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = r.BeginProcessing(ctx, uuid.New(), at)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMemoryCancelDocument(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	d := newDocument(1)
	require.NoError(t, r.CreateDocument(ctx, d))

	cancelled, err := r.CancelDocument(ctx, d.ID, "guest left")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCancelled, cancelled.Status)
	assert.Equal(t, "guest left", cancelled.CancelReason)

	_, err = r.CancelDocument(ctx, d.ID, "again")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = r.CancelDocument(ctx, uuid.New(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMemoryIssuerConfig(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	defaults := model.IssuerConfig{IssuerID: "issuer", DefaultSeries: "1", Environment: model.EnvironmentSandbox}

	c, created, err := r.GetOrCreateIssuerConfig(ctx, defaults)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "1", c.DefaultSeries)

	c.DefaultSeries = "7"
	c.AutoIssue = true
	require.NoError(t, r.SaveIssuerConfig(ctx, c))

	again, created, err := r.GetOrCreateIssuerConfig(ctx, defaults)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "7", again.DefaultSeries)
	assert.True(t, again.AutoIssue)
}
