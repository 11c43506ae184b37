package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"scenecast/types"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

type dialect struct {
	driver    string
	timestamp string
	numbered  bool // $1 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{driver: "sqlite3", timestamp: "DATETIME"}
	postgresDialect = dialect{driver: "postgres", timestamp: "TIMESTAMP WITH TIME ZONE", numbered: true}
)

// Catalog stores assets and their artifacts in SQLite or PostgreSQL
type Catalog struct {
	db *sql.DB
	d  dialect
}

// Open connects to databaseURL. postgres:// and postgresql:// URLs use
// PostgreSQL; anything else is a SQLite path, optionally prefixed with sqlite://.
func Open(ctx context.Context, databaseURL string) (*Catalog, error) {
	d := sqliteDialect
	dsn := strings.TrimPrefix(databaseURL, "sqlite://")
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		d = postgresDialect
		dsn = databaseURL
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.driver == "sqlite3" {
		// SQLite allows one writer; serialize through a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &Catalog{db: db, d: d}
	if err := c.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL,
			style_prompt TEXT NOT NULL,
			duration_seconds DOUBLE PRECISION,
			source TEXT NOT NULL,
			uploaded_at %s NOT NULL
		)`, c.d.timestamp),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
			timestamp_seconds DOUBLE PRECISION NOT NULL,
			transcript TEXT NOT NULL,
			image_prompt TEXT NOT NULL,
			image_handle TEXT NOT NULL,
			image_ref TEXT NOT NULL,
			created_at %s NOT NULL
		)`, c.d.timestamp),
		`CREATE INDEX IF NOT EXISTS idx_artifacts_asset_created ON artifacts(asset_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_uploaded_at ON assets(uploaded_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL
func (c *Catalog) rebind(query string) string {
	if !c.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateAsset inserts a new asset record
func (c *Catalog) CreateAsset(ctx context.Context, a types.Asset) error {
	var duration sql.NullFloat64
	if a.DurationKnown() {
		duration = sql.NullFloat64{Float64: a.DurationSeconds, Valid: true}
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	a.UploadedAt = a.UploadedAt.UTC()

	_, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO assets (id, filename, original_name, style_prompt, duration_seconds, source, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Filename, a.OriginalName, a.StylePrompt, duration, a.Source, a.UploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("asset %s: %w", a.ID, ErrExists)
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

const assetColumns = `id, filename, original_name, style_prompt, duration_seconds, source, uploaded_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(s scanner) (types.Asset, error) {
	var a types.Asset
	var duration sql.NullFloat64
	if err := s.Scan(&a.ID, &a.Filename, &a.OriginalName, &a.StylePrompt, &duration, &a.Source, &a.UploadedAt); err != nil {
		return types.Asset{}, err
	}
	if duration.Valid {
		a.DurationSeconds = duration.Float64
	}
	a.Ready = true
	return a, nil
}

// GetAsset returns the asset or ErrNotFound
func (c *Catalog) GetAsset(ctx context.Context, id string) (types.Asset, error) {
	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT `+assetColumns+` FROM assets WHERE id = ?`), id)

	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Asset{}, fmt.Errorf("failed to read asset: %w", err)
	}
	return a, nil
}

// ListAssets returns all assets, newest first
func (c *Catalog) ListAssets(ctx context.Context) ([]types.Asset, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	result := []types.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// DeleteAsset removes the asset and its artifacts, returning the removed
// artifacts so their images can be cleaned up.
func (c *Catalog) DeleteAsset(ctx context.Context, id string) ([]types.Artifact, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	artifacts, err := listArtifacts(ctx, tx, c.rebind, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, c.rebind(`DELETE FROM artifacts WHERE asset_id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to delete artifacts: %w", err)
	}
	res, err := tx.ExecContext(ctx, c.rebind(`DELETE FROM assets WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// SaveArtifact records a generated artifact. The asset must exist.
func (c *Catalog) SaveArtifact(ctx context.Context, a types.Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	var exists int
	err := c.db.QueryRowContext(ctx, c.rebind(`SELECT 1 FROM assets WHERE id = ?`), a.AssetID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("asset %s: %w", a.AssetID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO artifacts (id, asset_id, timestamp_seconds, transcript, image_prompt, image_handle, image_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ArtifactID, a.AssetID, a.TimestampSeconds, a.TranscriptText, a.ImagePromptText, a.ImageHandle, a.ImageRef, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("artifact %s: %w", a.ArtifactID, ErrExists)
		}
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

// DeleteArtifact removes one artifact record. A missing record is not an
// error.
func (c *Catalog) DeleteArtifact(ctx context.Context, assetID, artifactID string) error {
	if _, err := c.db.ExecContext(ctx, c.rebind(`DELETE FROM artifacts WHERE asset_id = ? AND id = ?`), assetID, artifactID); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the asset's artifacts in creation order, so
// replaying them through the timeline keeps the latest of colliding entries.
func (c *Catalog) ListArtifacts(ctx context.Context, assetID string) ([]types.Artifact, error) {
	return listArtifacts(ctx, c.db, c.rebind, assetID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listArtifacts(ctx context.Context, q querier, rebind func(string) string, assetID string) ([]types.Artifact, error) {
	rows, err := q.QueryContext(ctx, rebind(`
		SELECT id, asset_id, timestamp_seconds, transcript, image_prompt, image_handle, image_ref, created_at
		FROM artifacts WHERE asset_id = ? ORDER BY created_at ASC, id ASC`), assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	result := []types.Artifact{}
	for rows.Next() {
		var a types.Artifact
		if err := rows.Scan(&a.ArtifactID, &a.AssetID, &a.TimestampSeconds, &a.TranscriptText,
			&a.ImagePromptText, &a.ImageHandle, &a.ImageRef, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
