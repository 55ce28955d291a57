// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
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

// ListTransactions retrieves the transaction history for a tenant. The
// fixed ordering (customer, timestamp, id) is what makes scan output
// independent of storage order. A zero since loads everything.
func (r *SQLRepository) ListTransactions(ctx context.Context, tenantID string, since time.Time) ([]domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, customer_id, type, amount, currency,
			   timestamp, location, latitude, longitude, payee_id, mcc
		FROM transactions
		WHERE tenant_id = ? AND timestamp >= ?
		ORDER BY customer_id, timestamp, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var currency, location, payeeID sql.NullString
		var lat, lon sql.NullFloat64
		var mcc sql.NullInt64

		if err := rows.Scan(
			&tx.TransactionID, &tx.TenantID, &tx.CustomerID, &tx.Type,
			&tx.Amount, &currency,
			&tx.TransactionDate, &location, &lat, &lon, &payeeID, &mcc,
		); err != nil {
			return nil, err
		}

		tx.Currency = currency.String
		tx.Location = location.String
		tx.PayeeID = payeeID.String
		tx.MCC = int(mcc.Int64)
		if lat.Valid && lon.Valid {
			latV, lonV := lat.Float64, lon.Float64
			tx.Latitude, tx.Longitude = &latV, &lonV
		}

		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if !tx.Valid() {
		return fmt.Errorf("%w: transaction id, customer id and date are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, customer_id, type, amount, currency,
			timestamp, location, latitude, longitude, payee_id, mcc, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lat, lon any
	if tx.HasCoordinates() {
		lat, lon = *tx.Latitude, *tx.Longitude
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.TransactionID, tenantID, tx.CustomerID, tx.Type,
		tx.Amount, tx.Currency,
		tx.TransactionDate, tx.Location, lat, lon,
		tx.PayeeID, tx.MCC, time.Now().UTC(),
	)
	return err
}

// GetCustomerName retrieves a customer's display name with tenant isolation.
func (r *SQLRepository) GetCustomerName(ctx context.Context, tenantID string, customerID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT full_name FROM customers WHERE tenant_id = ? AND customer_id = ?`

	var name string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// SaveCustomer upserts a customer record with tenant isolation.
func (r *SQLRepository) SaveCustomer(ctx context.Context, tenantID string, customerID, fullName string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if customerID == "" {
		return fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (customer_id, tenant_id, full_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(customer_id, tenant_id) DO UPDATE SET
			full_name = excluded.full_name
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		customerID, tenantID, fullName, time.Now().UTC(),
	)
	return err
}

// SaveAlert stores a fraud alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_alerts (
			id, tenant_id, transaction_id, customer_id, full_name,
			rule_name, details, transaction_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.TransactionID, alert.CustomerID, alert.FullName,
		alert.Rule, alert.Details, alert.TransactionDate, alert.CreatedAt,
	)
	return err
}

// ListAlerts retrieves the most recent alerts for a tenant, newest
// first. A limit of 0 or less returns everything.
func (r *SQLRepository) ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, transaction_id, customer_id, full_name,
			   rule_name, details, transaction_date, created_at
		FROM fraud_alerts
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id
	`

	args := []any{tenantID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.TransactionID, &a.CustomerID, &a.FullName,
			&a.Rule, &a.Details, &a.TransactionDate, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// SaveCase stores an investigation case with tenant isolation.
func (r *SQLRepository) SaveCase(ctx context.Context, tenantID string, c *domain.Case) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if c.CustomerID == "" {
		return fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO cases (
			id, tenant_id, transaction_id, customer_id, full_name,
			rule_name, details, transaction_date, file_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var txDate any
	if !c.TransactionDate.IsZero() {
		txDate = c.TransactionDate
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.TransactionID, c.CustomerID, c.FullName,
		c.Rule, c.Details, txDate, c.FileName, c.CreatedAt,
	)
	return err
}

// ListCases retrieves all cases for a tenant, newest first.
func (r *SQLRepository) ListCases(ctx context.Context, tenantID string) ([]domain.Case, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, transaction_id, customer_id, full_name,
			   rule_name, details, transaction_date, file_name, created_at
		FROM cases
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		var c domain.Case
		var txID, fullName, fileName sql.NullString
		var txDate sql.NullTime

		if err := rows.Scan(
			&c.ID, &c.TenantID, &txID, &c.CustomerID, &fullName,
			&c.Rule, &c.Details, &txDate, &fileName, &c.CreatedAt,
		); err != nil {
			return nil, err
		}

		c.TransactionID = txID.String
		c.FullName = fullName.String
		c.FileName = fileName.String
		if txDate.Valid {
			c.TransactionDate = txDate.Time
		}

		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// SaveScreenConfig upserts a screening rule with tenant isolation.
func (r *SQLRepository) SaveScreenConfig(ctx context.Context, tenantID string, cfg *domain.ScreenConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if cfg.ID == "" || cfg.Name == "" || cfg.Expression == "" {
		return fmt.Errorf("%w: screen id, name and expression are required", ErrInvalidInput)
	}

	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screen_rules (
			id, tenant_id, name, description, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cfg.ID, tenantID, cfg.Name, cfg.Description,
		cfg.Expression, cfg.Reason, enabled,
		now, now,
	)
	return err
}

// ListScreenConfigs retrieves all screening rules for a tenant.
func (r *SQLRepository) ListScreenConfigs(ctx context.Context, tenantID string) ([]*domain.ScreenConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, reason, enabled
		FROM screen_rules
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.ScreenConfig
	for rows.Next() {
		var cfg domain.ScreenConfig
		var description, reason sql.NullString
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &description,
			&cfg.Expression, &reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Description = description.String
		cfg.Reason = reason.String
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $n for the postgres driver.
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
