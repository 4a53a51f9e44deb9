package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

// documentStore is the persistence seam DocumentService needs: the same
// methods engine.Store already exposes for documents, kept as its own
// narrow interface since document CRUD is explicitly out of the
// workflow core's scope.
type documentStore interface {
	SaveDocument(ctx context.Context, doc *engine.Document) error
	ListDocuments(ctx context.Context, userID string) ([]engine.Document, error)
}

// DocumentService implements Documents over the same Store the engine
// persists Nodes/Documents to — thin CRUD, no gate or retry logic.
type DocumentService struct {
	store documentStore
}

func NewDocumentService(store documentStore) *DocumentService {
	return &DocumentService{store: store}
}

func (s *DocumentService) Create(title string, config engine.Config) (engine.Document, error) {
	now := time.Now()
	doc := engine.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    engine.StatusIdle,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveDocument(context.Background(), &doc); err != nil {
		return engine.Document{}, err
	}
	return doc, nil
}

func (s *DocumentService) List(userID string) ([]engine.Document, error) {
	return s.store.ListDocuments(context.Background(), userID)
}
