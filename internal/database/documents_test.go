package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentCols = []string{
	"id", "user_id", "application_id", "type", "title", "content", "word_count", "version", "is_generated",
	"metadata", "created_at", "updated_at",
}

func TestCreateDocument(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()
	owner := uuid.New()
	appID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows(documentCols).AddRow(
			id.String(), owner.String(), appID.String(), "ESSAY", "Personal statement", "one two three",
			3, 1, false, []byte(`{"tone":"formal"}`), now, now,
		))

	doc, err := db.CreateDocument(context.Background(), owner, &models.Document{
		ApplicationID: &appID,
		Type:          models.DocumentEssay,
		Title:         "Personal statement",
		Content:       "one two three",
		WordCount:     3,
		Version:       1,
	})
	require.NoError(t, err)
	require.NotNil(t, doc.ApplicationID)
	assert.Equal(t, appID, *doc.ApplicationID)
	assert.Equal(t, 3, doc.WordCount)
	assert.JSONEq(t, `{"tone":"formal"}`, string(doc.Metadata))
}

func TestListDocuments_DetachedApplication(t *testing.T) {
	db, mock := newMockDB(t)
	owner := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM documents WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs(owner).
		WillReturnRows(sqlmock.NewRows(documentCols).AddRow(
			uuid.New().String(), owner.String(), nil, "CV", "Resume", "", 0, 2, true, nil, now, now,
		))

	docs, err := db.ListDocuments(context.Background(), &owner)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].ApplicationID)
	assert.Nil(t, docs[0].Metadata)
	assert.True(t, docs[0].IsGenerated)
}

func TestUpdateDocument_Stale(t *testing.T) {
	db, mock := newMockDB(t)
	title := "New title"

	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2 AND updated_at = \$3`).
		WillReturnRows(sqlmock.NewRows(documentCols))

	_, err := db.UpdateDocument(context.Background(), uuid.New(), uuid.New(), time.Now(), models.DocumentUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrStale)
}

func TestDeleteDocument_Stale(t *testing.T) {
	db, mock := newMockDB(t)
	readAt := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM documents WHERE id = \$1 AND user_id = \$2 AND updated_at = \$3`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), readAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, db.DeleteDocument(context.Background(), uuid.New(), uuid.New(), readAt), ErrStale)
}
