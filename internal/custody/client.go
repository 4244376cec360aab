// Package custody implements consumers of the external Vault Custody
// Interface. The HTTP client talks to the custody service that actually
// moves funds; the in-process bank backs local mode and tests.
package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// Client is an HTTP client for the custody service. Every call is
// fallible; the ledger compensates transfers already issued when a later
// step fails.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientConfig holds custody service connection parameters.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a custody Client. A zero timeout defaults to 15s.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type provisionRequest struct {
	GroupID string `json:"group_id"`
}

type provisionResponse struct {
	GroupVault     string `json:"group_vault"`
	InsuranceVault string `json:"insurance_vault"`
}

type transferRequest struct {
	Vault  string `json:"vault"`
	Party  string `json:"party"`
	Amount int64  `json:"amount"`
}

// Provision creates the group and insurance custody accounts for a group.
func (c *Client) Provision(ctx context.Context, groupID string) (domain.VaultHandles, error) {
	var resp provisionResponse
	if err := c.post(ctx, "/v1/vaults", provisionRequest{GroupID: groupID}, &resp); err != nil {
		return domain.VaultHandles{}, fmt.Errorf("custody: provision group %s: %w", groupID, err)
	}
	if resp.GroupVault == "" || resp.InsuranceVault == "" {
		return domain.VaultHandles{}, fmt.Errorf("custody: provision group %s: empty vault handle in response", groupID)
	}
	return domain.VaultHandles{Group: resp.GroupVault, Insurance: resp.InsuranceVault}, nil
}

// TransferIn debits `from` and credits the vault.
func (c *Client) TransferIn(ctx context.Context, vault, from string, amount int64) error {
	req := transferRequest{Vault: vault, Party: from, Amount: amount}
	if err := c.post(ctx, "/v1/transfers/in", req, nil); err != nil {
		return fmt.Errorf("custody: transfer %d into %s: %w", amount, vault, err)
	}
	return nil
}

// TransferOut debits the vault and credits `to`.
func (c *Client) TransferOut(ctx context.Context, vault, to string, amount int64) error {
	req := transferRequest{Vault: vault, Party: to, Amount: amount}
	if err := c.post(ctx, "/v1/transfers/out", req, nil); err != nil {
		return fmt.Errorf("custody: transfer %d out of %s: %w", amount, vault, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.Vault = (*Client)(nil)
