package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    full_name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (customer_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT,
    timestamp TIMESTAMP NOT NULL,
    location TEXT,
    latitude REAL,
    longitude REAL,
    payee_id TEXT,
    mcc INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaFraudAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    full_name TEXT NOT NULL,
    rule_name TEXT NOT NULL,
    details TEXT NOT NULL,
    transaction_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_tenant ON fraud_alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_customer ON fraud_alerts(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_rule ON fraud_alerts(tenant_id, rule_name);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_created ON fraud_alerts(tenant_id, created_at);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    transaction_id TEXT,
    customer_id TEXT NOT NULL,
    full_name TEXT,
    rule_name TEXT NOT NULL,
    details TEXT NOT NULL,
    transaction_date TIMESTAMP,
    file_name TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_tenant ON cases(tenant_id);
CREATE INDEX IF NOT EXISTS idx_cases_customer ON cases(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_cases_created ON cases(tenant_id, created_at);
`

const schemaScreens = `
CREATE TABLE IF NOT EXISTS screen_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_screen_rules_tenant ON screen_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screen_rules_enabled ON screen_rules(tenant_id, enabled);
`

// AllSchemas returns all schema definitions in creation order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaTransactions,
		schemaFraudAlerts,
		schemaCases,
		schemaScreens,
	}
}
