package store

// Schema definitions for the engine database.
// Compatible with both SQLite and PostgreSQL.

const schemaEntities = `
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    pep_flag INTEGER NOT NULL DEFAULT 0,
    sanctions_flag INTEGER NOT NULL DEFAULT 0,
    risk_score REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS aml_cases (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    category TEXT,
    status TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    amount_involved REAL NOT NULL DEFAULT 0,
    pattern_indicators TEXT,
    risk_score REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON aml_cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_risk_level ON aml_cases(risk_level);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL,
    source_entity TEXT NOT NULL,
    dest_entity TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    type TEXT,
    channels TEXT,
    flags TEXT,
    description TEXT,
    risk_score REAL NOT NULL DEFAULT 0,
    detected_patterns TEXT,
    anomaly_score REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_case ON transactions(case_id);
CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source_entity);
CREATE INDEX IF NOT EXISTS idx_transactions_dest ON transactions(dest_entity);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

const schemaAnomalies = `
CREATE TABLE IF NOT EXISTS anomaly_scores (
    transaction_id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL,
    score REAL NOT NULL,
    reasons TEXT,
    detected_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_anomalies_case ON anomaly_scores(case_id);
`

const schemaIndicatorRules = `
CREATE TABLE IF NOT EXISTS indicator_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    indicator TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indicator_rules_enabled ON indicator_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaEntities,
		schemaCases,
		schemaTransactions,
		schemaAnomalies,
		schemaIndicatorRules,
	}
}
