// Package pgx serves datasets from the Postgres dataset repository.
//
// Every dataset kind lives in its own table with the columns
// (id uuid, version text, json jsonb). An empty version selects the latest
// stored version of an id.
package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db dbConn
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

func (c *Client) get(ctx context.Context, kind dataset.Kind, id, version string) (dataset.Dataset, error) {
	var d dataset.Dataset
	err := c.db.QueryRow(ctx, detailSQL(kind), id, version).Scan(&d.ID, &d.Version, &d.JSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return dataset.Dataset{}, fmt.Errorf("%s %s@%s: %w", kind, id, version, dataset.ErrNotFound)
	}
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("failed to query %s %s: %w", kind, id, err)
	}
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

// GetReferenceUnitGroups resolves the reference unit group of many flow
// properties in one query.
func (c *Client) GetReferenceUnitGroups(ctx context.Context, refs []dataset.Ref) ([]dataset.ReferenceUnitGroup, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(refs))
	versions := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
		versions = append(versions, ref.Version)
	}

	rows, err := c.db.Query(ctx, referenceUnitGroupsSQL, ids, versions)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference unit groups: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.ReferenceUnitGroup, error) {
		var item dataset.ReferenceUnitGroup
		err := row.Scan(&item.ID, &item.Version, &item.Name, &item.RefUnitGroupID)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read reference unit groups: %w", err)
	}
	return items, nil
}

// detailSQL selects one dataset. Table names come from dataset.Kind
// constants only.
func detailSQL(kind dataset.Kind) string {
	return `
SELECT id::text, version, json::text
FROM ` + string(kind) + `
WHERE id = $1::uuid AND ($2 = '' OR version = $2)
ORDER BY version DESC
LIMIT 1;
`
}

const referenceUnitGroupsSQL = `
SELECT DISTINCT ON (fp.id)
       fp.id::text,
       fp.version,
       coalesce(
         fp.json #>> '{flowPropertyDataSet,flowPropertiesInformation,dataSetInformation,common:name,0,#text}',
         fp.json #>> '{flowPropertyDataSet,flowPropertiesInformation,dataSetInformation,common:name,#text}',
         ''
       ),
       coalesce(
         fp.json #>> '{flowPropertyDataSet,flowPropertiesInformation,quantitativeReference,referenceToReferenceUnitGroup,@refObjectId}',
         ''
       )
FROM flowproperties fp
JOIN unnest($1::text[], $2::text[]) AS r(id, version)
  ON fp.id = r.id::uuid AND (r.version = '' OR fp.version = r.version)
ORDER BY fp.id, fp.version DESC;
`
