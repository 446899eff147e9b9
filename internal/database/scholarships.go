package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const scholarshipColumns = `id, name, organization, amount, currency, deadline, description, eligibility, requirements,
	application_url, category, country, field_of_study, degree_level, is_active, created_at, updated_at`

func scanScholarship(row rowScanner) (*models.Scholarship, error) {
	var s models.Scholarship
	var eligibility []byte
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Organization,
		&s.Amount,
		&s.Currency,
		&s.Deadline,
		&s.Description,
		&eligibility,
		pq.Array(&s.Requirements),
		&s.ApplicationURL,
		pq.Array(&s.Category),
		pq.Array(&s.Country),
		pq.Array(&s.FieldOfStudy),
		pq.Array(&s.DegreeLevel),
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Eligibility = rawJSON(eligibility)
	return &s, nil
}

func (p *PostgresDB) queryScholarships(ctx context.Context, query string, args ...interface{}) ([]models.Scholarship, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list scholarships", err)
	}
	defer rows.Close()

	scholarships := make([]models.Scholarship, 0)
	for rows.Next() {
		s, err := scanScholarship(rows)
		if err != nil {
			return nil, translateError("scan scholarship", err)
		}
		scholarships = append(scholarships, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list scholarships", err)
	}
	return scholarships, nil
}

// CreateScholarship inserts a scholarship. Currency defaults to USD and
// is_active to true.
func (p *PostgresDB) CreateScholarship(ctx context.Context, in models.ScholarshipInput) (*models.Scholarship, error) {
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	query := `
		INSERT INTO scholarships (name, organization, amount, currency, deadline, description, eligibility,
			requirements, application_url, category, country, field_of_study, degree_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + scholarshipColumns

	s, err := scanScholarship(p.db.QueryRowContext(ctx, query,
		in.Name, in.Organization, in.Amount, currency, in.Deadline, in.Description, jsonParam(in.Eligibility),
		textArray(in.Requirements), in.ApplicationURL, textArray(in.Category), textArray(in.Country),
		textArray(in.FieldOfStudy), textArray(in.DegreeLevel), active,
	))
	if err != nil {
		return nil, translateError("create scholarship", err)
	}

	log.Info().Str("scholarship_id", s.ID.String()).Str("name", s.Name).Msg("Scholarship created")
	return s, nil
}

// GetScholarship returns ErrNotFound for an unknown id.
func (p *PostgresDB) GetScholarship(ctx context.Context, id uuid.UUID) (*models.Scholarship, error) {
	query := `SELECT ` + scholarshipColumns + ` FROM scholarships WHERE id = $1`

	s, err := scanScholarship(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError("get scholarship", err)
	}
	return s, nil
}

// ListScholarships applies the filter and orders by deadline, soonest first.
// Array filters match when the column contains the value.
func (p *PostgresDB) ListScholarships(ctx context.Context, f models.ScholarshipFilter) ([]models.Scholarship, error) {
	var where []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.IsActive != nil {
		add("is_active = $%d", *f.IsActive)
	}
	if f.Country != "" {
		add("$%d = ANY(country)", f.Country)
	}
	if f.Category != "" {
		add("$%d = ANY(category)", f.Category)
	}
	if f.FieldOfStudy != "" {
		add("$%d = ANY(field_of_study)", f.FieldOfStudy)
	}
	if f.DegreeLevel != "" {
		add("$%d = ANY(degree_level)", f.DegreeLevel)
	}

	query := `SELECT ` + scholarshipColumns + ` FROM scholarships`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY deadline ASC`

	return p.queryScholarships(ctx, query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchScholarships matches q case-insensitively against name,
// organization and description of active scholarships.
func (p *PostgresDB) SearchScholarships(ctx context.Context, q string) ([]models.Scholarship, error) {
	pattern := containsPattern(q)
	query := `
		SELECT ` + scholarshipColumns + `
		FROM scholarships
		WHERE is_active = TRUE
		  AND (name ILIKE $1 OR organization ILIKE $1 OR description ILIKE $1)
		ORDER BY deadline ASC`

	return p.queryScholarships(ctx, query, pattern)
}

// FindDuplicateScholarship returns an existing scholarship that looks like
// the same opportunity. Name and organization must each match exactly or
// contain the first three significant words (longer than two characters) of
// the candidate. ErrNotFound means no lookalike exists.
func (p *PostgresDB) FindDuplicateScholarship(ctx context.Context, name, organization string) (*models.Scholarship, error) {
	query := `
		SELECT ` + scholarshipColumns + `
		FROM scholarships
		WHERE (name = $1 OR name ILIKE $3)
		  AND (organization = $2 OR organization ILIKE $4)
		ORDER BY created_at ASC
		LIMIT 1`

	s, err := scanScholarship(p.db.QueryRowContext(ctx, query,
		name, organization, containsPattern(significantWords(name)), containsPattern(significantWords(organization)),
	))
	if err != nil {
		return nil, translateError("find duplicate scholarship", err)
	}
	return s, nil
}

// significantWords keeps the first three words longer than two characters.
// Text without such words is returned whole so the pattern never degrades
// to matching everything.
func significantWords(text string) string {
	var words []string
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
			if len(words) == 3 {
				break
			}
		}
	}
	if len(words) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(words, " ")
}

func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(fragment) + "%"
}

// UpdateScholarship applies a partial update. Nil slices leave the array
// columns unchanged while empty slices clear them.
func (p *PostgresDB) UpdateScholarship(ctx context.Context, id uuid.UUID, upd models.ScholarshipUpdate) (*models.Scholarship, error) {
	query := `
		UPDATE scholarships SET
			name            = COALESCE($2, name),
			organization    = COALESCE($3, organization),
			amount          = COALESCE($4, amount),
			currency        = COALESCE($5, currency),
			deadline        = COALESCE($6, deadline),
			description     = COALESCE($7, description),
			eligibility     = COALESCE($8::jsonb, eligibility),
			requirements    = COALESCE($9::text[], requirements),
			application_url = COALESCE($10, application_url),
			category        = COALESCE($11::text[], category),
			country         = COALESCE($12::text[], country),
			field_of_study  = COALESCE($13::text[], field_of_study),
			degree_level    = COALESCE($14::text[], degree_level),
			is_active       = COALESCE($15, is_active),
			updated_at      = NOW()
		WHERE id = $1
		RETURNING ` + scholarshipColumns

	s, err := scanScholarship(p.db.QueryRowContext(ctx, query,
		id, upd.Name, upd.Organization, upd.Amount, upd.Currency, upd.Deadline, upd.Description,
		jsonParam(upd.Eligibility), optionalTextArray(upd.Requirements), upd.ApplicationURL,
		optionalTextArray(upd.Category), optionalTextArray(upd.Country),
		optionalTextArray(upd.FieldOfStudy), optionalTextArray(upd.DegreeLevel), upd.IsActive,
	))
	if err != nil {
		return nil, translateError("update scholarship", err)
	}
	return s, nil
}

// DeleteScholarship returns ErrNotFound when nothing was deleted.
func (p *PostgresDB) DeleteScholarship(ctx context.Context, id uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM scholarships WHERE id = $1`, id)
	if err != nil {
		return translateError("delete scholarship", err)
	}
	n, err := rowsAffected("delete scholarship", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllScholarships empties the catalogue and reports how many rows
// were removed.
func (p *PostgresDB) DeleteAllScholarships(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM scholarships`)
	if err != nil {
		return 0, translateError("delete scholarships", err)
	}
	return rowsAffected("delete scholarships", res)
}

// DeactivateExpiredScholarships marks active scholarships whose deadline is
// before now as inactive.
func (p *PostgresDB) DeactivateExpiredScholarships(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE scholarships SET is_active = FALSE, updated_at = NOW() WHERE is_active = TRUE AND deadline < $1`, now)
	if err != nil {
		return 0, translateError("deactivate scholarships", err)
	}
	return rowsAffected("deactivate scholarships", res)
}
