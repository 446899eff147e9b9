package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userColumns = `id, email, password_hash, google_id, first_name, last_name, role, is_active, created_at, updated_at, last_login`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var googleID sql.NullString
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&googleID,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	if googleID.Valid {
		u.GoogleID = &googleID.String
	}
	return &u, nil
}

// CreateUser inserts a password account. Email uniqueness is enforced by
// the database and reported as ErrDuplicate.
func (p *PostgresDB) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	role := user.Role
	if role == "" {
		role = models.RoleStudent
	}

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	created, err := scanUser(p.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, role,
	))
	if err != nil {
		return nil, translateError("create user", err)
	}

	log.Info().
		Str("user_id", created.ID.String()).
		Str("email", created.Email).
		Msg("User created")

	return created, nil
}

// UpsertGoogleUser signs in a Google account. An existing account with the
// same email is linked to googleID instead of creating a duplicate.
func (p *PostgresDB) UpsertGoogleUser(ctx context.Context, googleID, email, firstName, lastName string) (*models.User, error) {
	query := `
		INSERT INTO users (email, google_id, first_name, last_name, last_login)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email)
		DO UPDATE SET
			google_id = COALESCE(users.google_id, EXCLUDED.google_id),
			last_login = NOW(),
			updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(p.db.QueryRowContext(ctx, query, email, googleID, firstName, lastName))
	if err != nil {
		return nil, translateError("upsert google user", err)
	}
	return user, nil
}

// GetUserByID returns ErrNotFound for an unknown id.
func (p *PostgresDB) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(p.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, translateError("get user", err)
	}
	return user, nil
}

// GetUserByEmail matches the email case-insensitively.
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(p.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, translateError("get user", err)
	}
	return user, nil
}

// ListUsers returns every user, newest first.
func (p *PostgresDB) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError("list users", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, translateError("scan user", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list users", err)
	}
	return users, nil
}

// UpdateUser applies a partial update and returns the new row.
func (p *PostgresDB) UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	query := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			role       = COALESCE($4, role),
			is_active  = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(p.db.QueryRowContext(ctx, query,
		userID, upd.FirstName, upd.LastName, upd.Role, upd.IsActive,
	))
	if err != nil {
		return nil, translateError("update user", err)
	}
	return user, nil
}

// DeleteUser removes a user. Profiles, applications and documents go with
// it through ON DELETE CASCADE.
func (p *PostgresDB) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return translateError("delete user", err)
	}
	n, err := rowsAffected("delete user", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	log.Info().Str("user_id", userID.String()).Msg("User deleted")
	return nil
}

// UpdateLastLogin stamps last_login with the database clock.
func (p *PostgresDB) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
