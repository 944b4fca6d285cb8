package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository reads the emergency keyword table.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

// ListEmergencyKeywords returns the enabled keywords, lowercased and in
// insertion order.
func (r *Repository) ListEmergencyKeywords(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT keyword FROM emergency_keywords
         WHERE enabled
         ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out, rows.Err()
}

// AddEmergencyKeyword inserts a keyword, re-enabling it if it already exists.
func (r *Repository) AddEmergencyKeyword(ctx context.Context, keyword string) error {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return fmt.Errorf("empty keyword")
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO emergency_keywords (keyword) VALUES ($1)
         ON CONFLICT (lower(keyword)) DO UPDATE SET enabled = TRUE`, kw)
	return err
}
