package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// OpenMemory opens a private in-memory database, used by tests and dry runs
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection would see a different empty database
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	for _, m := range Migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Migrations are applied in order; every statement is idempotent
var Migrations = []string{
	migrationProducts,
	migrationAutomationConfigs,
	migrationIntegrations,
	migrationAppSettings,
	migrationSchedules,
}

const migrationProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    image TEXT,
    affiliate_link TEXT,
    platform TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    sales_copy TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_user_active ON products(user_id, active);
`

const migrationAutomationConfigs = `
CREATE TABLE IF NOT EXISTS automation_configs (
    id TEXT PRIMARY KEY,
    user_id TEXT UNIQUE NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 0,
    days JSON NOT NULL DEFAULT '[]',
    start_hour TEXT NOT NULL DEFAULT '08:00',
    end_hour TEXT NOT NULL DEFAULT '23:00',
    interval_minutes INTEGER NOT NULL DEFAULT 30,
    shuffled_product_ids JSON NOT NULL DEFAULT '[]',
    last_shuffle_index INTEGER NOT NULL DEFAULT 0,
    last_sent_at TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationIntegrations = `
CREATE TABLE IF NOT EXISTS integrations (
    user_id TEXT PRIMARY KEY,
    enabled INTEGER NOT NULL DEFAULT 0,
    instance_id TEXT,
    token TEXT,
    base_url TEXT,
    destinations JSON NOT NULL DEFAULT '[]',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationAppSettings = `
CREATE TABLE IF NOT EXISTS app_settings (
    user_id TEXT PRIMARY KEY,
    sales_template TEXT,
    display_name TEXT,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationSchedules = `
CREATE TABLE IF NOT EXISTS schedules (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    product_id TEXT,
    product_title TEXT,
    product_image TEXT,
    scheduled_time TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    platform TEXT NOT NULL DEFAULT 'WhatsApp',
    frequency TEXT NOT NULL DEFAULT 'once',
    error TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_schedules_user_time ON schedules(user_id, scheduled_time);
CREATE INDEX IF NOT EXISTS idx_schedules_status ON schedules(status);
`
