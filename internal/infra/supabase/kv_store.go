package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/infra/kv"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// nodeRow maps the kv_nodes table columns.
type nodeRow struct {
	Path      string          `json:"path"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// Get assembles the subtree at path (implements port.KVStore).
func (c *Client) Get(ctx context.Context, path string) (port.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Get")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return port.Snapshot{}, err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	var rows []nodeRow
	err = resilience.Call(ctx, c.cb, c.cfg, "supabase/get", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, subtreeQuery(path, true), nil, "")
		if err != nil {
			return err
		}
		rows = nil
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode nodes: %w", err)
		}
		return nil
	})
	if err != nil {
		return port.Snapshot{}, err
	}

	nodes := make([]kv.Node, 0, len(rows))
	for _, r := range rows {
		// LIKE is only a coarse filter; keep exact subtree members.
		if r.Path != path && !strings.HasPrefix(r.Path, path+"/") {
			continue
		}
		nodes = append(nodes, kv.Node{Path: r.Path, Value: r.Value})
	}

	raw, err := kv.Assemble(path, nodes)
	if err != nil {
		return port.Snapshot{}, err
	}
	return port.Snapshot{Path: path, Value: raw}, nil
}

// Set replaces the subtree at path. The delete and insert are separate
// requests, so concurrent writers are last-write-wins per leaf.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Set")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	nodes, err := kv.Flatten(path, value)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rows := make([]nodeRow, len(nodes))
	for i, n := range nodes {
		rows[i] = nodeRow{Path: n.Path, Value: n.Value, UpdatedAt: now}
	}

	err = resilience.Call(ctx, c.cb, c.cfg, "supabase/set", func() error {
		if _, err := c.doRequest(ctx, http.MethodDelete, subtreeQuery(path, false), nil, "return=minimal"); err != nil {
			return err
		}
		if ancestors := kv.Ancestors(path); len(ancestors) > 0 {
			if _, err := c.doRequest(ctx, http.MethodDelete, inQuery(ancestors), nil, "return=minimal"); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := c.doRequest(ctx, http.MethodPost, "", rows, "resolution=merge-duplicates,return=minimal")
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Debug("supabase: set", zap.String("path", path), zap.Int("nodes", len(rows)))
	return nil
}

// Push stores value under a new time-ordered child key.
func (c *Client) Push(ctx context.Context, path string, value any) (string, error) {
	key := kv.PushKey()
	if err := c.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Watch polls path every watch interval; PostgREST has no change feed.
func (c *Client) Watch(ctx context.Context, path string) (<-chan port.Snapshot, error) {
	path, err := kv.CleanPath(path)
	if err != nil {
		return nil, err
	}
	return kv.PollWatch(ctx, c.watchInterval, path, func(ctx context.Context) (port.Snapshot, error) {
		return c.Get(ctx, path)
	}), nil
}

// Ping issues a one-row read against the node table.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "path")
	q.Set("limit", "1")
	_, err := c.doRequest(ctx, http.MethodGet, q.Encode(), nil, "")
	return err
}

// Close is a no-op; the HTTP client is shared.
func (c *Client) Close() error { return nil }
