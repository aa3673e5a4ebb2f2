// Package sqlite serves datasets from a local SQLite file, for offline
// exports of a dataset dump.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Client reads the same table layout as the Postgres repository, with the
// document stored as TEXT.
type Client struct {
	db *sql.DB
}

// Open opens or creates the database at path and makes sure every dataset
// table exists.
func Open(path string) (*Client, error) {
	if path == "" {
		path = "datasets.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, kind := range dataset.Kinds {
		if _, err := db.Exec(createTableSQL(kind)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create %s table: %w", kind, err)
		}
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Put stores or replaces one dataset version.
func (c *Client) Put(ctx context.Context, kind dataset.Kind, d dataset.Dataset) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+string(kind)+` (id, version, json) VALUES (?, ?, ?)`,
		d.ID, d.Version, string(d.JSON),
	)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", kind, d.ID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, kind dataset.Kind, id, version string) (dataset.Dataset, error) {
	var (
		d   dataset.Dataset
		doc string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, version, json FROM `+string(kind)+`
		 WHERE id = ? AND (? = '' OR version = ?)
		 ORDER BY version DESC LIMIT 1`,
		id, version, version,
	).Scan(&d.ID, &d.Version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return dataset.Dataset{}, fmt.Errorf("%s %s@%s: %w", kind, id, version, dataset.ErrNotFound)
	}
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("select %s %s: %w", kind, id, err)
	}
	d.JSON = []byte(doc)
	return d, nil
}

func (c *Client) GetLifeCycleModelDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(ctx, dataset.KindLifeCycleModel, id, version)
}

func (c *Client) GetProcessDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(ctx, dataset.KindProcess, id, version)
}

func (c *Client) GetFlowDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(ctx, dataset.KindFlow, id, version)
}

func (c *Client) GetFlowPropertyDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(ctx, dataset.KindFlowProperty, id, version)
}

func (c *Client) GetUnitGroupDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(ctx, dataset.KindUnitGroup, id, version)
}

func createTableSQL(kind dataset.Kind) string {
	return `CREATE TABLE IF NOT EXISTS ` + string(kind) + ` (
		id TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		json TEXT NOT NULL,
		PRIMARY KEY (id, version)
	)`
}
