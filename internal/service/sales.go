package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/rental-billing/internal/booking"
	"github.com/mmeshcher/rental-billing/internal/finance"
	"github.com/mmeshcher/rental-billing/internal/model"
	"github.com/mmeshcher/rental-billing/internal/repository"
	"github.com/mmeshcher/rental-billing/internal/validation"
)

func availabilityGuard(s *model.Sale) repository.Guard {
	return func(existing []model.Sale) error {
		if !booking.IsAvailable(s.HouseID, s.Stay, existing, s.ID) {
			return ErrUnavailable
		}
		return nil
	}
}

// CreateSale проверяет договор, вычисляет производные показатели и сохраняет его,
// если период проживания свободен.
func (s *Service) CreateSale(ctx context.Context, sale *model.Sale) (*model.Sale, error) {
	if sale.Status == "" {
		sale.Status = model.SaleStatusPending
	}
	if err := validation.ValidateSale(sale); err != nil {
		return nil, err
	}
	if sale.Status == model.SaleStatusCancelled {
		return nil, &validation.ValidationError{Err: validation.ErrInvalidStatus, Details: "sale cannot be created cancelled"}
	}

	// Идентификатор всегда назначается сервисом.
	sale.ID = uuid.New()
	finance.Apply(sale)

	if err := s.repo.CreateSale(ctx, sale, availabilityGuard(sale)); err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("house_id", sale.HouseID),
		zap.Int("nights", sale.Totals.Nights),
	)
	return sale, nil
}

// UpdateSale заменяет базовые поля договора и пересчитывает производные.
// Статус не меняется; доступность проверяется без учёта самого договора.
func (s *Service) UpdateSale(ctx context.Context, sale *model.Sale) (*model.Sale, error) {
	current, err := s.repo.GetSale(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}

	sale.Status = current.Status
	if err := validation.ValidateSale(sale); err != nil {
		return nil, err
	}
	finance.Apply(sale)

	var guard repository.Guard
	if sale.Status != model.SaleStatusCancelled {
		guard = availabilityGuard(sale)
	}

	if err := s.repo.UpdateSale(ctx, sale, guard); err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}

	s.logger.Info("sale updated", zap.String("sale_id", sale.ID.String()))
	return sale, nil
}

// ChangeSaleStatus переводит договор в новый статус без пересчёта показателей.
func (s *Service) ChangeSaleStatus(ctx context.Context, id uuid.UUID, next model.SaleStatus) (*model.Sale, error) {
	if !next.Valid() {
		return nil, &validation.ValidationError{Err: validation.ErrInvalidStatus, Details: string(next)}
	}

	sale, err := s.repo.UpdateSaleStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidSaleTransition) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		return nil, fmt.Errorf("change sale status: %w", err)
	}

	s.logger.Info("sale status changed",
		zap.String("sale_id", id.String()),
		zap.String("status", string(next)),
	)
	return sale, nil
}

// GetSale возвращает договор по идентификатору.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListHouseSales возвращает договоры дома.
func (s *Service) ListHouseSales(ctx context.Context, houseID string, includeCancelled bool) ([]model.Sale, error) {
	return s.repo.ListHouseSales(ctx, houseID, includeCancelled)
}

// CheckAvailability сообщает, свободен ли дом на период stay. Договор exclude не учитывается.
func (s *Service) CheckAvailability(ctx context.Context, houseID string, stay model.StayPeriod, exclude uuid.UUID) (bool, error) {
	if houseID == "" {
		return false, &validation.ValidationError{Err: validation.ErrMissingHouse}
	}
	if stay.CheckIn.IsZero() || !stay.CheckOut.After(stay.CheckIn) {
		return false, &validation.ValidationError{Err: validation.ErrInvalidStay}
	}

	sales, err := s.repo.ListHouseSales(ctx, houseID, false)
	if err != nil {
		return false, fmt.Errorf("list house sales: %w", err)
	}

	return booking.IsAvailable(houseID, stay, sales, exclude), nil
}
