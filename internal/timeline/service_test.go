package timeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
)

type stubTimelineRepo struct {
	entries []models.TimelineEntry
	listErr error
}

func (s *stubTimelineRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubTimelineRepo) Append(ctx context.Context, entry *models.TimelineEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubTimelineRepo) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.entries, nil
}

func TestRecordAppendsEntry(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	orderID := uuid.New()
	if err := svc.Record(context.Background(), nil, orderID, enums.TimelineSenderSystem, "  order placed  "); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.OrderID != orderID {
		t.Fatalf("wrong order id")
	}
	if entry.Message != "order placed" {
		t.Fatalf("message not trimmed: %q", entry.Message)
	}
	if entry.Sender != enums.TimelineSenderSystem {
		t.Fatalf("wrong sender %s", entry.Sender)
	}
}

func TestRecordValidatesInputs(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []struct {
		name    string
		orderID uuid.UUID
		sender  enums.TimelineSender
		message string
	}{
		{name: "missing order", orderID: uuid.Nil, sender: enums.TimelineSenderSystem, message: "hello"},
		{name: "bad sender", orderID: uuid.New(), sender: enums.TimelineSender("bot"), message: "hello"},
		{name: "blank message", orderID: uuid.New(), sender: enums.TimelineSenderBuyer, message: "   "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Record(context.Background(), nil, tc.orderID, tc.sender, tc.message)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if len(repo.entries) != 0 {
		t.Fatalf("no entries should be appended, got %d", len(repo.entries))
	}
}

func TestListRequiresOrderID(t *testing.T) {
	svc, err := NewService(&stubTimelineRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.List(context.Background(), uuid.Nil, 10)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
