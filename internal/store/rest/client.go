// Package rest is the hook-side store adapter. It speaks the store's
// PostgREST surface with the anon credential and watches rows over the
// realtime websocket. Row-level policies on the store restrict what this
// credential can do: insert pending rows, read recent rows, and close out
// its own still-pending rows; nothing else.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

const requestsTable = "approval_requests"

// Client implements store.RequestWriter against a Supabase-style REST API.
type Client struct {
	baseURL   string
	anonKey   string
	machineID string // signed identifier sent as x-machine-id
	http      *http.Client
}

var _ store.RequestWriter = (*Client)(nil)

// New builds a Client from the store config. signedMachineID travels on
// every request so the insert policy can check it.
func New(cfg config.StoreConfig, signedMachineID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		anonKey:   cfg.AnonKey,
		machineID: signedMachineID,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("x-machine-id", c.machineID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Insert creates a pending approval row. The store assigns created_at.
func (c *Client) Insert(ctx context.Context, row store.ApprovalRequest) error {
	payload, err := json.Marshal(map[string]any{
		"id":            row.ID,
		"command":       row.Command,
		"danger_reason": row.DangerReason,
		"severity":      row.Severity,
		"cwd":           row.Cwd,
		"status":        store.StatusPending,
		"machine_id":    row.MachineID,
	})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/"+requestsTable, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert approval request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("insert approval request: store returned %d", resp.StatusCode)
	}
	return nil
}

// CloseOut flips a still-pending row to its final status. The
// status=eq.pending filter makes this a no-op when a human verdict
// already landed.
func (c *Client) CloseOut(ctx context.Context, id string, status store.Status, resolvedBy string) error {
	payload, err := json.Marshal(map[string]any{
		"status":      status,
		"resolved_at": time.Now().UTC().Format(time.RFC3339),
		"resolved_by": resolvedBy,
	})
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq."+string(store.StatusPending))
	path := "/rest/v1/" + requestsTable + "?" + q.Encode()

	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("close out request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("close out request: store returned %d", resp.StatusCode)
	}
	return nil
}

// Subscribe opens a realtime change feed scoped to one row id.
func (c *Client) Subscribe(ctx context.Context, id string) (store.Subscription, error) {
	return dialRealtime(ctx, c.baseURL, c.anonKey, id)
}
