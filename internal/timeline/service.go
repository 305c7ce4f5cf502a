package timeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/pagination"
)

// Service exposes the buyer-facing order activity feed.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, sender enums.TimelineSender, message string) error
	List(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEntry, error)
}

type service struct {
	repo Repository
}

// NewService builds a timeline service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("timeline repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends an entry inside the caller's transaction so the timeline row
// commits atomically with the state change it describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, sender enums.TimelineSender, message string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !sender.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid timeline sender")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "timeline message required")
	}

	entry := &models.TimelineEntry{
		OrderID: orderID,
		Sender:  sender,
		Message: message,
	}
	if err := s.repo.WithTx(tx).Append(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline entry")
	}
	return nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := s.repo.ListByOrder(ctx, orderID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list timeline entries")
	}
	return entries, nil
}
