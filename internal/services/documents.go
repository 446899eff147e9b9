package services

import (
	"context"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DocumentRepository is the persistence surface of DocumentService.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, userID uuid.UUID, d *models.Document) (*models.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID *uuid.UUID) ([]models.Document, error)
	UpdateDocument(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time, upd models.DocumentUpdate) (*models.Document, error)
	DeleteDocument(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time) error
}

// ApplicationReader resolves the application a document is attached to.
type ApplicationReader interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

// DocumentService is the owner scoped CRUD service for documents. It
// follows the same rules as ApplicationService. A document can only be
// attached to an application of the same owner.
type DocumentService struct {
	repo     DocumentRepository
	apps     ApplicationReader
	notifier Notifier
}

func NewDocumentService(repo DocumentRepository, apps ApplicationReader, notifier Notifier) *DocumentService {
	return &DocumentService{repo: repo, apps: apps, notifier: notifierOrNoop(notifier)}
}

// WordCount counts whitespace separated words.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// Create stores a document owned by ownerID. word_count is derived from
// content unless given and version defaults to 1.
func (s *DocumentService) Create(ctx context.Context, ownerID uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	if !in.Type.Valid() {
		return nil, invalid("unknown document type %q", in.Type)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, invalid("title is required")
	}
	if err := s.checkApplication(ctx, ownerID, in.ApplicationID); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ApplicationID: in.ApplicationID,
		Type:          in.Type,
		Title:         in.Title,
		Content:       in.Content,
		WordCount:     WordCount(in.Content),
		Version:       1,
		IsGenerated:   in.IsGenerated,
		Metadata:      in.Metadata,
	}
	if in.WordCount != nil {
		if *in.WordCount < 0 {
			return nil, invalid("word_count must not be negative")
		}
		doc.WordCount = *in.WordCount
	}
	if in.Version != nil {
		if *in.Version < 1 {
			return nil, invalid("version must be at least 1")
		}
		doc.Version = *in.Version
	}

	created, err := s.repo.CreateDocument(ctx, ownerID, doc)
	if err != nil {
		return nil, translate("create document", err)
	}

	log.Info().
		Str("document_id", created.ID.String()).
		Str("user_id", ownerID.String()).
		Str("type", string(created.Type)).
		Msg("Document created")

	if created.IsGenerated {
		s.notifier.NotifyUser(ctx, ownerID, models.EventDocumentGenerated, models.DocumentGenerated{
			DocumentID: created.ID.String(),
			Title:      created.Title,
			Type:       created.Type,
			Timestamp:  time.Now().UTC(),
		})
	}
	return created, nil
}

// FindAll lists documents newest first. A nil ownerID lists all owners.
func (s *DocumentService) FindAll(ctx context.Context, ownerID *uuid.UUID) ([]models.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, ownerID)
	if err != nil {
		return nil, translate("list documents", err)
	}
	return docs, nil
}

// FindOne returns a document. With a non-nil ownerID the record must
// belong to that owner.
func (s *DocumentService) FindOne(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, translate("get document", err)
	}
	if ownerID != nil && doc.UserID != *ownerID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// Update patches a document of ownerID. When content changes and no count
// is given, word_count is recomputed.
func (s *DocumentService) Update(ctx context.Context, id, ownerID uuid.UUID, upd models.DocumentUpdate) (*models.Document, error) {
	current, err := s.FindOne(ctx, id, &ownerID)
	if err != nil {
		return nil, err
	}
	if upd.Type != nil && !upd.Type.Valid() {
		return nil, invalid("unknown document type %q", *upd.Type)
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, invalid("title must not be empty")
	}
	if upd.Version != nil && *upd.Version < 1 {
		return nil, invalid("version must be at least 1")
	}
	if err := s.checkApplication(ctx, ownerID, upd.ApplicationID); err != nil {
		return nil, err
	}
	if upd.Content != nil && upd.WordCount == nil {
		n := WordCount(*upd.Content)
		upd.WordCount = &n
	}

	updated, err := s.repo.UpdateDocument(ctx, id, ownerID, current.UpdatedAt, upd)
	if err != nil {
		return nil, translate("update document", err)
	}

	log.Info().
		Str("document_id", id.String()).
		Str("user_id", ownerID.String()).
		Msg("Document updated")
	return updated, nil
}

// Remove deletes a document of ownerID.
func (s *DocumentService) Remove(ctx context.Context, id, ownerID uuid.UUID) error {
	current, err := s.FindOne(ctx, id, &ownerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDocument(ctx, id, ownerID, current.UpdatedAt); err != nil {
		return translate("delete document", err)
	}

	log.Info().
		Str("document_id", id.String()).
		Str("user_id", ownerID.String()).
		Msg("Document deleted")
	return nil
}

func (s *DocumentService) checkApplication(ctx context.Context, ownerID uuid.UUID, applicationID *uuid.UUID) error {
	if applicationID == nil || s.apps == nil {
		return nil
	}
	app, err := s.apps.GetApplication(ctx, *applicationID)
	if err != nil {
		err = translate("get application", err)
		if isNotFound(err) {
			return invalid("application %s does not exist", *applicationID)
		}
		return err
	}
	if app.UserID != ownerID {
		return ErrForbidden
	}
	return nil
}
