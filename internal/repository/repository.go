// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openwelfare/ubk/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Seed the regional reference table on first start
	if err := repo.seedRegions(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed regions: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// seedRegions inserts the built-in regional table when none are stored.
func (r *SQLRepository) seedRegions(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM regions").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, region := range domain.DefaultRegions() {
		if err := r.SaveRegion(ctx, region); err != nil {
			return err
		}
	}
	return nil
}

// SaveApplication stores an application.
func (r *SQLRepository) SaveApplication(ctx context.Context, app *domain.Application) error {
	if app == nil || app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}

	members, _ := json.Marshal(app.FamilyMembers)
	documents, _ := json.Marshal(app.Documents)

	query := `
		INSERT INTO applications (
			id, family_head, region_id, children_count, family_members,
			monthly_income, documents, submission_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_head = excluded.family_head,
			region_id = excluded.region_id,
			children_count = excluded.children_count,
			family_members = excluded.family_members,
			monthly_income = excluded.monthly_income,
			documents = excluded.documents,
			submission_date = excluded.submission_date
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, app.FamilyHead, app.RegionID, app.ChildrenCount,
		string(members), app.MonthlyIncome, string(documents),
		app.SubmissionDate, app.CreatedAt,
	)
	return err
}

// GetApplication retrieves an application by ID.
func (r *SQLRepository) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	query := `
		SELECT id, family_head, region_id, children_count, family_members,
			   monthly_income, documents, submission_date, created_at
		FROM applications
		WHERE id = ?
	`

	var app domain.Application
	var members, documents string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&app.ID, &app.FamilyHead, &app.RegionID, &app.ChildrenCount,
		&members, &app.MonthlyIncome, &documents,
		&app.SubmissionDate, &app.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(members), &app.FamilyMembers)
	json.Unmarshal([]byte(documents), &app.Documents)

	return &app, nil
}

// ListApplications retrieves all stored applications, oldest first.
func (r *SQLRepository) ListApplications(ctx context.Context) ([]*domain.Application, error) {
	query := `
		SELECT id, family_head, region_id, children_count, family_members,
			   monthly_income, documents, submission_date, created_at
		FROM applications
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		var app domain.Application
		var members, documents string

		if err := rows.Scan(
			&app.ID, &app.FamilyHead, &app.RegionID, &app.ChildrenCount,
			&members, &app.MonthlyIncome, &documents,
			&app.SubmissionDate, &app.CreatedAt,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(members), &app.FamilyMembers)
		json.Unmarshal([]byte(documents), &app.Documents)

		apps = append(apps, &app)
	}

	return apps, rows.Err()
}

// SaveRegion stores or updates a region.
func (r *SQLRepository) SaveRegion(ctx context.Context, region *domain.Region) error {
	if region == nil || region.ID == "" {
		return fmt.Errorf("%w: region id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO regions (id, name, type, coefficient, border_bonus)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			coefficient = excluded.coefficient,
			border_bonus = excluded.border_bonus
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		region.ID, region.Name, region.Type, region.Coefficient, region.BorderBonus,
	)
	return err
}

// GetRegion retrieves a region by ID.
func (r *SQLRepository) GetRegion(ctx context.Context, id string) (*domain.Region, error) {
	query := `
		SELECT id, name, type, coefficient, border_bonus
		FROM regions
		WHERE id = ?
	`

	var region domain.Region
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&region.ID, &region.Name, &region.Type, &region.Coefficient, &region.BorderBonus,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &region, nil
}

// ListRegions retrieves all regions ordered by name.
func (r *SQLRepository) ListRegions(ctx context.Context) ([]*domain.Region, error) {
	query := `
		SELECT id, name, type, coefficient, border_bonus
		FROM regions
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []*domain.Region
	for rows.Next() {
		var region domain.Region
		if err := rows.Scan(
			&region.ID, &region.Name, &region.Type, &region.Coefficient, &region.BorderBonus,
		); err != nil {
			return nil, err
		}
		regions = append(regions, &region)
	}

	return regions, rows.Err()
}

// SaveResult stores a processing result.
func (r *SQLRepository) SaveResult(ctx context.Context, result *domain.ProcessingResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("%w: result id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(result.Reasons)
	matches, _ := json.Marshal(result.Matches)

	eligible := 0
	if result.Eligible {
		eligible = 1
	}
	duplicateRisk := 0
	if result.DuplicateRisk {
		duplicateRisk = 1
	}

	query := `
		INSERT INTO results (
			id, application_id, eligible, risk_score, risk_level,
			benefit_amount, action, reasons, duplicate_risk, matches, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.ID, result.ApplicationID, eligible, result.RiskScore, result.RiskLevel,
		result.BenefitAmount, result.Action, string(reasons), duplicateRisk,
		string(matches), result.Timestamp,
	)
	return err
}

// GetResult retrieves a processing result by ID.
func (r *SQLRepository) GetResult(ctx context.Context, id string) (*domain.ProcessingResult, error) {
	query := `
		SELECT id, application_id, eligible, risk_score, risk_level,
			   benefit_amount, action, reasons, duplicate_risk, matches, timestamp
		FROM results
		WHERE id = ?
	`

	result, err := scanResult(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

// ListResults retrieves processing results since a point in time,
// newest first.
func (r *SQLRepository) ListResults(ctx context.Context, since time.Time) ([]*domain.ProcessingResult, error) {
	query := `
		SELECT id, application_id, eligible, risk_score, risk_level,
			   benefit_amount, action, reasons, duplicate_risk, matches, timestamp
		FROM results
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ProcessingResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*domain.ProcessingResult, error) {
	var result domain.ProcessingResult
	var reasons, matches string
	var eligible, duplicateRisk int

	err := row.Scan(
		&result.ID, &result.ApplicationID, &eligible, &result.RiskScore,
		&result.RiskLevel, &result.BenefitAmount, &result.Action,
		&reasons, &duplicateRisk, &matches, &result.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	result.Eligible = eligible == 1
	result.DuplicateRisk = duplicateRisk == 1
	json.Unmarshal([]byte(reasons), &result.Reasons)
	if matches != "" {
		json.Unmarshal([]byte(matches), &result.Matches)
	}

	return &result, nil
}

// SaveScreeningRule stores or updates a screening rule.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, rule *domain.ScreeningRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screening_rules (
			id, name, description, expression, weight, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Weight, rule.Reason, enabled, now, now,
	)
	return err
}

// ListScreeningRules retrieves all enabled screening rules ordered by name.
func (r *SQLRepository) ListScreeningRules(ctx context.Context) ([]*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, expression, weight, reason, enabled
		FROM screening_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreeningRule
	for rows.Next() {
		var rule domain.ScreeningRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&rule.Weight, &rule.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteScreeningRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteScreeningRule(ctx context.Context, id string) error {
	query := `
		UPDATE screening_rules
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
