package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

const profileColumns = `id, user_id, phone, location, citizenship, date_of_birth, gender, ethnicity, gpa, major,
	university, graduation_year, linkedin, website, bio, cv_data, created_at, updated_at`

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var pr models.UserProfile
	var cv []byte
	err := row.Scan(
		&pr.ID,
		&pr.UserID,
		&pr.Phone,
		&pr.Location,
		&pr.Citizenship,
		&pr.DateOfBirth,
		&pr.Gender,
		&pr.Ethnicity,
		&pr.GPA,
		&pr.Major,
		&pr.University,
		&pr.GraduationYear,
		&pr.LinkedIn,
		&pr.Website,
		&pr.Bio,
		&cv,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pr.CVData = rawJSON(cv)
	return &pr, nil
}

// GetProfile returns ErrNotFound when the user has no profile yet.
func (p *PostgresDB) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

	profile, err := scanProfile(p.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, translateError("get profile", err)
	}
	return profile, nil
}

// CreateProfile inserts the profile of an existing user. It returns
// ErrNotFound when the user does not exist and ErrDuplicate when a profile
// already exists.
func (p *PostgresDB) CreateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error) {
	var created *models.UserProfile

	err := p.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		if err != nil {
			return translateError("check user", err)
		}
		if !exists {
			return ErrNotFound
		}

		query := `
			INSERT INTO user_profiles (user_id, phone, location, citizenship, date_of_birth, gender, ethnicity,
				gpa, major, university, graduation_year, linkedin, website, bio, cv_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING ` + profileColumns

		created, err = scanProfile(tx.QueryRowContext(ctx, query,
			userID, in.Phone, in.Location, in.Citizenship, in.DateOfBirth, in.Gender, in.Ethnicity,
			in.GPA, in.Major, in.University, in.GraduationYear, in.LinkedIn, in.Website, in.Bio,
			jsonParam(in.CVData),
		))
		if err != nil {
			return translateError("create profile", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EnsureProfile returns the user's profile, creating an empty one first if
// none exists.
func (p *PostgresDB) EnsureProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	profile, err := p.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, translateError("create empty profile", err)
	}
	return p.GetProfile(ctx, userID)
}

// UpdateProfile patches an existing profile. ErrNotFound means the user has
// no profile.
func (p *PostgresDB) UpdateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error) {
	query := `
		UPDATE user_profiles SET
			phone           = COALESCE($2, phone),
			location        = COALESCE($3, location),
			citizenship     = COALESCE($4, citizenship),
			date_of_birth   = COALESCE($5, date_of_birth),
			gender          = COALESCE($6, gender),
			ethnicity       = COALESCE($7, ethnicity),
			gpa             = COALESCE($8, gpa),
			major           = COALESCE($9, major),
			university      = COALESCE($10, university),
			graduation_year = COALESCE($11, graduation_year),
			linkedin        = COALESCE($12, linkedin),
			website         = COALESCE($13, website),
			bio             = COALESCE($14, bio),
			cv_data         = COALESCE($15::jsonb, cv_data),
			updated_at      = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns

	profile, err := scanProfile(p.db.QueryRowContext(ctx, query,
		userID, in.Phone, in.Location, in.Citizenship, in.DateOfBirth, in.Gender, in.Ethnicity,
		in.GPA, in.Major, in.University, in.GraduationYear, in.LinkedIn, in.Website, in.Bio,
		jsonParam(in.CVData),
	))
	if err != nil {
		return nil, translateError("update profile", err)
	}
	return profile, nil
}
