// Package memory provides a map-backed dataset client. It serves tests and
// offline exports from a fixture directory.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
)

// Client stores datasets per kind and id. Versions are recorded but any
// version of a stored id satisfies a lookup, mirroring how draft models
// reference datasets whose version moved on.
type Client struct {
	mu       sync.RWMutex
	data     map[dataset.Kind]map[string]dataset.Dataset
	failing  map[string]struct{}
	refUnits map[string]dataset.ReferenceUnitGroup
	calls    map[dataset.Kind]int
}

func New() *Client {
	return &Client{
		data:    make(map[dataset.Kind]map[string]dataset.Dataset),
		failing: make(map[string]struct{}),
		calls:   make(map[dataset.Kind]int),
	}
}

// Put stores a raw JSON document.
func (c *Client) Put(kind dataset.Kind, id, version, json string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[kind] == nil {
		c.data[kind] = make(map[string]dataset.Dataset)
	}
	c.data[kind][id] = dataset.Dataset{ID: id, Version: version, JSON: []byte(json)}
	return c
}

// Fail makes every lookup of id fail, whatever its kind.
func (c *Client) Fail(id string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[id] = struct{}{}
	return c
}

// WithReferenceUnitGroups enables the batched lookup with the given answers.
func (c *Client) WithReferenceUnitGroups(items ...dataset.ReferenceUnitGroup) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refUnits == nil {
		c.refUnits = make(map[string]dataset.ReferenceUnitGroup)
	}
	for _, item := range items {
		c.refUnits[item.ID] = item
	}
	return c
}

// Calls returns how many lookups of a kind were served or refused.
func (c *Client) Calls(kind dataset.Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[kind]
}

func (c *Client) get(kind dataset.Kind, id string) (dataset.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[kind]++
	if _, ok := c.failing[id]; ok {
		return dataset.Dataset{}, fmt.Errorf("lookup of %s %s failed", kind, id)
	}
	d, ok := c.data[kind][id]
	if !ok {
		return dataset.Dataset{}, fmt.Errorf("%s %s: %w", kind, id, dataset.ErrNotFound)
	}
	return d, nil
}

func (c *Client) GetLifeCycleModelDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(dataset.KindLifeCycleModel, id)
}

func (c *Client) GetProcessDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(dataset.KindProcess, id)
}

func (c *Client) GetFlowDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(dataset.KindFlow, id)
}

func (c *Client) GetFlowPropertyDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(dataset.KindFlowProperty, id)
}

func (c *Client) GetUnitGroupDetail(ctx context.Context, id, version string) (dataset.Dataset, error) {
	return c.get(dataset.KindUnitGroup, id)
}

// GetReferenceUnitGroups answers only when answers were registered with
// WithReferenceUnitGroups; otherwise it reports the lookup as unavailable.
func (c *Client) GetReferenceUnitGroups(ctx context.Context, refs []dataset.Ref) ([]dataset.ReferenceUnitGroup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refUnits == nil {
		return nil, dataset.ErrNotFound
	}
	out := make([]dataset.ReferenceUnitGroup, 0, len(refs))
	for _, ref := range refs {
		if item, ok := c.refUnits[ref.ID]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// LoadDir reads fixtures laid out as <dir>/<kind>/<id>.json, for example
// fixtures/processes/0f1c....json.
func LoadDir(dir string) (*Client, error) {
	c := New()
	for _, kind := range dataset.Kinds {
		entries, err := os.ReadDir(filepath.Join(dir, string(kind)))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture dir %s: %w", kind, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, string(kind), entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("failed to read fixture %s: %w", entry.Name(), err)
			}
			c.Put(kind, strings.TrimSuffix(entry.Name(), ".json"), "", string(raw))
		}
	}
	return c, nil
}
