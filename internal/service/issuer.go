package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/rental-billing/internal/model"
	"github.com/mmeshcher/rental-billing/internal/validation"
)

// GetIssuerConfig возвращает настройки эмитента. При первом обращении создаётся конфигурация
// по умолчанию: серия "1", автовыставление выключено, среда sandbox.
func (s *Service) GetIssuerConfig(ctx context.Context, issuerID string) (*model.IssuerConfig, error) {
	if issuerID == "" {
		return nil, &validation.ValidationError{Err: validation.ErrMissingIssuer}
	}

	defaults := model.DefaultIssuerConfig(issuerID, s.defaultTaxRate, s.defaultRegionCode)
	cfg, created, err := s.repo.GetOrCreateIssuerConfig(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("get issuer config: %w", err)
	}
	if created {
		s.logger.Info("issuer config created with defaults",
			zap.String("issuer_id", issuerID),
			zap.String("environment", string(cfg.Environment)),
		)
	}
	return cfg, nil
}

// SaveIssuerConfig проверяет и сохраняет настройки эмитента.
func (s *Service) SaveIssuerConfig(ctx context.Context, cfg *model.IssuerConfig) (*model.IssuerConfig, error) {
	if cfg.IssuerID == "" {
		return nil, &validation.ValidationError{Err: validation.ErrMissingIssuer}
	}
	if err := validation.ValidateIssuerConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.repo.SaveIssuerConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save issuer config: %w", err)
	}

	s.logger.Info("issuer config saved",
		zap.String("issuer_id", cfg.IssuerID),
		zap.String("series", cfg.DefaultSeries),
		zap.Bool("auto_issue", cfg.AutoIssue),
	)
	return cfg, nil
}

// NextNumber выдаёт следующий номер документа для пары (эмитент, серия).
// При ошибке хранилища номер не считается выданным.
func (s *Service) NextNumber(ctx context.Context, issuerID, series string) (int64, error) {
	if issuerID == "" {
		return 0, &validation.ValidationError{Err: validation.ErrMissingIssuer}
	}
	if err := validation.ValidateSeries(series); err != nil {
		return 0, err
	}

	number, err := s.repo.NextNumber(ctx, issuerID, series)
	if err != nil {
		s.metrics.SequenceFailed()
		return 0, fmt.Errorf("allocate number: %w", err)
	}

	s.metrics.SequenceAllocated(series)
	return number, nil
}

// GetSequence возвращает состояние счётчика пары (эмитент, серия).
func (s *Service) GetSequence(ctx context.Context, issuerID, series string) (*model.SequenceCounter, error) {
	if err := validation.ValidateSeries(series); err != nil {
		return nil, err
	}
	return s.repo.GetSequence(ctx, issuerID, series)
}
