package database

import (
	"context"
	"errors"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

const documentColumns = `id, user_id, application_id, type, title, content, word_count, version, is_generated,
	metadata, created_at, updated_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	var applicationID uuid.NullUUID
	var metadata []byte
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&applicationID,
		&d.Type,
		&d.Title,
		&d.Content,
		&d.WordCount,
		&d.Version,
		&d.IsGenerated,
		&metadata,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if applicationID.Valid {
		d.ApplicationID = &applicationID.UUID
	}
	d.Metadata = rawJSON(metadata)
	return &d, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// CreateDocument stores a document owned by userID. The caller resolves
// defaults such as word count and version.
func (p *PostgresDB) CreateDocument(ctx context.Context, userID uuid.UUID, d *models.Document) (*models.Document, error) {
	query := `
		INSERT INTO documents (user_id, application_id, type, title, content, word_count, version, is_generated, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + documentColumns

	created, err := scanDocument(p.db.QueryRowContext(ctx, query,
		userID, nullableUUID(d.ApplicationID), d.Type, d.Title, d.Content, d.WordCount, d.Version,
		d.IsGenerated, jsonParam(d.Metadata),
	))
	if err != nil {
		return nil, translateError("create document", err)
	}
	return created, nil
}

// GetDocument returns the document regardless of owner.
func (p *PostgresDB) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError("get document", err)
	}
	return d, nil
}

// ListDocuments returns documents newest first. A nil ownerID lists every
// owner's documents.
func (p *PostgresDB) ListDocuments(ctx context.Context, ownerID *uuid.UUID) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []interface{}
	if ownerID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list documents", err)
	}
	defer rows.Close()

	documents := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, translateError("scan document", err)
		}
		documents = append(documents, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list documents", err)
	}
	return documents, nil
}

// UpdateDocument is conditional on owner and on readAt in the same way as
// UpdateApplication.
func (p *PostgresDB) UpdateDocument(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time, upd models.DocumentUpdate) (*models.Document, error) {
	var applicationID interface{}
	if upd.ApplicationID != nil {
		applicationID = *upd.ApplicationID
	}

	query := `
		UPDATE documents SET
			application_id = COALESCE($4, application_id),
			type           = COALESCE($5, type),
			title          = COALESCE($6, title),
			content        = COALESCE($7, content),
			word_count     = COALESCE($8, word_count),
			version        = COALESCE($9, version),
			is_generated   = COALESCE($10, is_generated),
			metadata       = COALESCE($11::jsonb, metadata),
			updated_at     = NOW()
		WHERE id = $1 AND user_id = $2 AND updated_at = $3
		RETURNING ` + documentColumns

	d, err := scanDocument(p.db.QueryRowContext(ctx, query,
		id, ownerID, readAt, applicationID, upd.Type, upd.Title, upd.Content, upd.WordCount, upd.Version,
		upd.IsGenerated, jsonParam(upd.Metadata),
	))
	if err != nil {
		err = translateError("update document", err)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrStale
		}
		return nil, err
	}
	return d, nil
}

// DeleteDocument deletes the row if it belongs to ownerID and is unchanged
// since readAt. Otherwise it returns ErrStale.
func (p *PostgresDB) DeleteDocument(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2 AND updated_at = $3`, id, ownerID, readAt)
	if err != nil {
		return translateError("delete document", err)
	}
	n, err := rowsAffected("delete document", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
