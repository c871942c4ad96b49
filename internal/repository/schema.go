package repository

// Schema definitions for the UBK database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    family_head TEXT NOT NULL,
    region_id TEXT NOT NULL,
    children_count INTEGER NOT NULL,
    family_members TEXT NOT NULL,
    monthly_income INTEGER NOT NULL,
    documents TEXT NOT NULL,
    submission_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_region ON applications(region_id);
CREATE INDEX IF NOT EXISTS idx_applications_head ON applications(family_head);
CREATE INDEX IF NOT EXISTS idx_applications_submitted ON applications(submission_date);
`

const schemaRegions = `
CREATE TABLE IF NOT EXISTS regions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    coefficient REAL NOT NULL DEFAULT 1.0,
    border_bonus INTEGER NOT NULL DEFAULT 0
);
`

const schemaResults = `
CREATE TABLE IF NOT EXISTS results (
    id TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    eligible INTEGER NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    benefit_amount INTEGER NOT NULL,
    action TEXT NOT NULL,
    reasons TEXT NOT NULL,
    duplicate_risk INTEGER NOT NULL,
    matches TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_application ON results(application_id);
CREATE INDEX IF NOT EXISTS idx_results_action ON results(action);
CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results(timestamp);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 0,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaRegions,
		schemaResults,
		schemaScreeningRules,
	}
}
