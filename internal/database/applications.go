package database

import (
	"context"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

const applicationSelect = `
	SELECT a.id, a.user_id, a.scholarship_id, s.name, a.status, a.priority, a.match_score,
		a.match_rationale, a.notes, a.submitted_at, a.created_at, a.updated_at
	FROM applications a
	JOIN scholarships s ON s.id = a.scholarship_id`

func scanApplication(row rowScanner) (*models.Application, error) {
	var a models.Application
	var rationale []byte
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ScholarshipID,
		&a.ScholarshipName,
		&a.Status,
		&a.Priority,
		&a.MatchScore,
		&rationale,
		&a.Notes,
		&a.SubmittedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.MatchRationale = rawJSON(rationale)
	return &a, nil
}

// CreateApplication stores a new application owned by userID. A scholarship
// id that does not exist yields ErrInvalidReference.
func (p *PostgresDB) CreateApplication(ctx context.Context, userID uuid.UUID, in models.ApplicationInput) (*models.Application, error) {
	status := in.Status
	if status == "" {
		status = models.StatusDraft
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	var submittedAt *time.Time
	if status == models.StatusSubmitted {
		now := time.Now().UTC()
		submittedAt = &now
	}

	var id uuid.UUID
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO applications (user_id, scholarship_id, status, priority, match_score, match_rationale, notes, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		userID, in.ScholarshipID, status, priority, in.MatchScore, jsonParam(in.MatchRationale), in.Notes, submittedAt,
	).Scan(&id)
	if err != nil {
		return nil, translateError("create application", err)
	}

	return p.GetApplication(ctx, id)
}

// GetApplication returns the application regardless of owner. Ownership is
// checked by the service layer so it can tell Forbidden from NotFound.
func (p *PostgresDB) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	a, err := scanApplication(p.db.QueryRowContext(ctx, applicationSelect+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, translateError("get application", err)
	}
	return a, nil
}

// ListApplications returns applications newest first. A nil ownerID lists
// every owner's applications.
func (p *PostgresDB) ListApplications(ctx context.Context, ownerID *uuid.UUID) ([]models.Application, error) {
	query := applicationSelect
	var args []interface{}
	if ownerID != nil {
		query += ` WHERE a.user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY a.created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list applications", err)
	}
	defer rows.Close()

	applications := make([]models.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, translateError("scan application", err)
		}
		applications = append(applications, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list applications", err)
	}
	return applications, nil
}

// UpdateApplication applies upd only if the row still belongs to ownerID
// and its updated_at equals readAt, the value observed when the caller
// loaded it. Otherwise it returns ErrStale and changes nothing.
func (p *PostgresDB) UpdateApplication(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time, upd models.ApplicationUpdate) (*models.Application, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE applications SET
			status          = COALESCE($4, status),
			priority        = COALESCE($5, priority),
			match_score     = COALESCE($6, match_score),
			match_rationale = COALESCE($7::jsonb, match_rationale),
			notes           = COALESCE($8, notes),
			submitted_at    = COALESCE($9, submitted_at),
			updated_at      = NOW()
		WHERE id = $1 AND user_id = $2 AND updated_at = $3`,
		id, ownerID, readAt, upd.Status, upd.Priority, upd.MatchScore, jsonParam(upd.MatchRationale), upd.Notes, upd.SubmittedAt,
	)
	if err != nil {
		return nil, translateError("update application", err)
	}
	n, err := rowsAffected("update application", res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrStale
	}

	return p.GetApplication(ctx, id)
}

// DeleteApplication deletes the row if it belongs to ownerID and was not
// modified since readAt. Otherwise it returns ErrStale.
func (p *PostgresDB) DeleteApplication(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM applications WHERE id = $1 AND user_id = $2 AND updated_at = $3`, id, ownerID, readAt)
	if err != nil {
		return translateError("delete application", err)
	}
	n, err := rowsAffected("delete application", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
