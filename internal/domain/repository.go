package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
	// ListApplications returns every stored application. The result is the
	// duplicate matcher's reference snapshot, so it must be a point-in-time
	// read, not a live cursor.
	ListApplications(ctx context.Context) ([]*Application, error)

	// Region reference data
	SaveRegion(ctx context.Context, region *Region) error
	GetRegion(ctx context.Context, id string) (*Region, error)
	ListRegions(ctx context.Context) ([]*Region, error)

	// Processing results
	SaveResult(ctx context.Context, result *ProcessingResult) error
	GetResult(ctx context.Context, id string) (*ProcessingResult, error)
	ListResults(ctx context.Context, since time.Time) ([]*ProcessingResult, error)

	// Screening rule configuration
	SaveScreeningRule(ctx context.Context, rule *ScreeningRule) error
	ListScreeningRules(ctx context.Context) ([]*ScreeningRule, error)
	DeleteScreeningRule(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
