package commission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/config"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

// Service resolves the platform commission rate and splits order totals into
// commission and seller payout.
type Service interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
	Split(ctx context.Context, totalCents int64) (Split, error)
}

// Split is the commission breakdown for a settled order total.
type Split struct {
	Rate            decimal.Decimal
	CommissionCents int64
	NetPayoutCents  int64
}

type service struct {
	repo        SettingsRepository
	logg        *logger.Logger
	defaultRate decimal.Decimal
	cacheTTL    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	cached   decimal.Decimal
	cachedAt time.Time
}

// NewService builds a commission service with the configured cache TTL and
// fallback rate.
func NewService(repo SettingsRepository, cfg config.CommissionConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	fallback, err := decimal.NewFromString(cfg.DefaultRate)
	if err != nil {
		return nil, fmt.Errorf("invalid default commission rate %q: %w", cfg.DefaultRate, err)
	}
	if fallback.IsNegative() || fallback.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("default commission rate %q out of range", cfg.DefaultRate)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		repo:        repo,
		logg:        logg,
		defaultRate: fallback,
		cacheTTL:    ttl,
		now:         time.Now,
	}, nil
}

func (s *service) Rate(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.cachedAt.IsZero() && now.Sub(s.cachedAt) < s.cacheTTL {
		return s.cached, nil
	}

	rate, err := s.loadRate(ctx)
	if err != nil {
		// a stale rate beats failing the settlement path
		if !s.cachedAt.IsZero() {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "commission rate refresh failed, using cached value")
			return s.cached, nil
		}
		return decimal.Decimal{}, err
	}

	s.cached = rate
	s.cachedAt = now
	return rate, nil
}

func (s *service) Split(ctx context.Context, totalCents int64) (Split, error) {
	if totalCents < 0 {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "total must not be negative")
	}
	rate, err := s.Rate(ctx)
	if err != nil {
		return Split{}, err
	}

	commission := decimal.NewFromInt(totalCents).Mul(rate).Round(0).IntPart()
	if commission > totalCents {
		commission = totalCents
	}
	return Split{
		Rate:            rate,
		CommissionCents: commission,
		NetPayoutCents:  totalCents - commission,
	}, nil
}

func (s *service) loadRate(ctx context.Context) (decimal.Decimal, error) {
	setting, err := s.repo.FindSetting(ctx, models.SettingKeyCommissionRate)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.defaultRate, nil
		}
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rate")
	}

	rate, err := decimal.NewFromString(setting.Value)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "value", setting.Value), "commission rate setting is not a decimal, using default")
		return s.defaultRate, nil
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		s.logg.Warn(s.logg.WithField(ctx, "value", setting.Value), "commission rate setting out of range, using default")
		return s.defaultRate, nil
	}
	return rate, nil
}
