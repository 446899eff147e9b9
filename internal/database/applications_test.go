package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicationCols = []string{
	"id", "user_id", "scholarship_id", "name", "status", "priority", "match_score",
	"match_rationale", "notes", "submitted_at", "created_at", "updated_at",
}

func applicationRow(rows *sqlmock.Rows, id, userID, scholarshipID uuid.UUID, status string, createdAt time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id.String(), userID.String(), scholarshipID.String(), "Rhodes Scholarship", status, "MEDIUM",
		nil, []byte(`{"reason":"gpa"}`), nil, nil, createdAt, createdAt,
	)
}

func TestCreateApplication(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	scholarshipID := uuid.New()

	t.Run("applies defaults and returns joined row", func(t *testing.T) {
		db, mock := newMockDB(t)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO applications").
			WithArgs(userID, scholarshipID, "DRAFT", "MEDIUM", nil, nil, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
		mock.ExpectQuery("FROM applications a\\s+JOIN scholarships s").
			WithArgs(id).
			WillReturnRows(applicationRow(sqlmock.NewRows(applicationCols), id, userID, scholarshipID, "DRAFT", now))

		app, err := db.CreateApplication(ctx, userID, models.ApplicationInput{ScholarshipID: scholarshipID})
		require.NoError(t, err)
		assert.Equal(t, id, app.ID)
		assert.Equal(t, models.StatusDraft, app.Status)
		assert.Equal(t, "Rhodes Scholarship", app.ScholarshipName)
		assert.JSONEq(t, `{"reason":"gpa"}`, string(app.MatchRationale))
	})

	t.Run("unknown scholarship is an invalid reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO applications").
			WillReturnError(&pq.Error{Code: "23503"})

		_, err := db.CreateApplication(ctx, userID, models.ApplicationInput{ScholarshipID: scholarshipID})
		assert.ErrorIs(t, err, ErrInvalidReference)
	})
}

func TestGetApplication_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM applications a").
		WillReturnRows(sqlmock.NewRows(applicationCols))

	_, err := db.GetApplication(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListApplications(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now().UTC()

	t.Run("scoped to owner", func(t *testing.T) {
		db, mock := newMockDB(t)
		rows := sqlmock.NewRows(applicationCols)
		applicationRow(rows, uuid.New(), owner, uuid.New(), "SUBMITTED", now)
		applicationRow(rows, uuid.New(), owner, uuid.New(), "DRAFT", now.Add(-time.Hour))

		mock.ExpectQuery("WHERE a.user_id = \\$1 ORDER BY a.created_at DESC").
			WithArgs(owner).
			WillReturnRows(rows)

		apps, err := db.ListApplications(ctx, &owner)
		require.NoError(t, err)
		assert.Len(t, apps, 2)
	})

	t.Run("unscoped lists everything", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("JOIN scholarships s ON s.id = a.scholarship_id ORDER BY a.created_at DESC").
			WillReturnRows(sqlmock.NewRows(applicationCols))

		apps, err := db.ListApplications(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, apps)
		assert.Empty(t, apps)
	})
}

func TestUpdateApplication(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	owner := uuid.New()
	readAt := time.Now().UTC()
	status := models.StatusSubmitted

	t.Run("stale write changes nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE applications SET").
			WithArgs(id, owner, readAt, "SUBMITTED", nil, nil, nil, nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := db.UpdateApplication(ctx, id, owner, readAt, models.ApplicationUpdate{Status: &status})
		assert.ErrorIs(t, err, ErrStale)
	})

	t.Run("fresh write returns updated row", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE applications SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM applications a").
			WithArgs(id).
			WillReturnRows(applicationRow(sqlmock.NewRows(applicationCols), id, owner, uuid.New(), "SUBMITTED", readAt))

		app, err := db.UpdateApplication(ctx, id, owner, readAt, models.ApplicationUpdate{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, app.Status)
	})
}

func TestDeleteApplication(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	owner := uuid.New()
	readAt := time.Now().UTC()

	t.Run("deletes owned row", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM applications WHERE id = \\$1 AND user_id = \\$2 AND updated_at = \\$3").
			WithArgs(id, owner, readAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, db.DeleteApplication(ctx, id, owner, readAt))
	})

	t.Run("changed or missing row is stale", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM applications").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, db.DeleteApplication(ctx, id, owner, readAt), ErrStale)
	})
}
