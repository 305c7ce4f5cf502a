package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
)

// LedgerRepository defines persistence operations for the payment ledger.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	CreateEntry(ctx context.Context, entry *models.PaymentLedgerEntry) (*models.PaymentLedgerEntry, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentLedgerEntry, error)
	MarkSettled(ctx context.Context, reference string, settledAt time.Time) (int64, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository builds the gorm-backed payment ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) CreateEntry(ctx context.Context, entry *models.PaymentLedgerEntry) (*models.PaymentLedgerEntry, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *ledgerRepository) FindByReference(ctx context.Context, reference string) (*models.PaymentLedgerEntry, error) {
	var entry models.PaymentLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkSettled stamps the settlement time once; already-settled entries are
// left untouched so webhook retries stay idempotent.
func (r *ledgerRepository) MarkSettled(ctx context.Context, reference string, settledAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentLedgerEntry{}).
		Where("payment_reference = ? AND settled_at IS NULL", reference).
		Update("settled_at", settledAt)
	return res.RowsAffected, res.Error
}
