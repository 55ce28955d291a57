// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction history, ordered by customer then time; since may be
	// zero to load everything.
	ListTransactions(ctx context.Context, tenantID string, since time.Time) ([]Transaction, error)
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error

	// Customer identity
	GetCustomerName(ctx context.Context, tenantID string, customerID string) (string, error)
	SaveCustomer(ctx context.Context, tenantID string, customerID, fullName string) error

	// Alert persistence; a failed save is non-fatal to a scan
	SaveAlert(ctx context.Context, tenantID string, alert *Alert) error
	ListAlerts(ctx context.Context, tenantID string, limit int) ([]Alert, error)

	// Case tracking
	SaveCase(ctx context.Context, tenantID string, c *Case) error
	ListCases(ctx context.Context, tenantID string) ([]Case, error)

	// Custom screening rule configuration
	SaveScreenConfig(ctx context.Context, tenantID string, cfg *ScreenConfig) error
	ListScreenConfigs(ctx context.Context, tenantID string) ([]*ScreenConfig, error)

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
