// Package client is a Go client for the name service HTTP operations API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/bridge"
	"github.com/ruteri/ccns/httpserver"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/register"
)

// Client calls the operations API at ServerAddr on behalf of Caller.
type Client struct {
	// ServerAddr is the base URL of the API server
	ServerAddr string

	// Caller is sent as the simulated transaction sender
	Caller common.Address

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned error %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Caller != (common.Address{}) {
		req.Header.Set(httpserver.CallerHeader, c.Caller.Hex())
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// Register registers name for the caller.
func (c *Client) Register(ctx context.Context, name string) (*register.Receipt, error) {
	var receipt register.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/v1/register", httpserver.RegisterRequest{Name: name}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Lookup resolves name on network.
func (c *Client) Lookup(ctx context.Context, network, name string) (common.Address, error) {
	var resp httpserver.LookupResponse
	path := fmt.Sprintf("/api/v1/lookup/%s/%s", url.PathEscape(network), url.PathEscape(name))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return common.Address{}, err
	}
	return resp.Owner, nil
}

func (c *Client) Chains(ctx context.Context) ([]interfaces.ChainConfig, error) {
	var chains []interfaces.ChainConfig
	if err := c.do(ctx, http.MethodGet, "/api/v1/chains", nil, &chains); err != nil {
		return nil, err
	}
	return chains, nil
}

func (c *Client) EnableChain(ctx context.Context, selector interfaces.ChainSelector, req httpserver.EnableChainRequest) (*interfaces.ChainConfig, error) {
	var cfg interfaces.ChainConfig
	if err := c.do(ctx, http.MethodPut, "/api/v1/admin/chains/"+selector.String(), req, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) DisableChain(ctx context.Context, selector interfaces.ChainSelector) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/admin/chains/"+selector.String(), nil, nil)
}

// Fund moves amount from the caller into the treasury and returns the new balance.
func (c *Client) Fund(ctx context.Context, amount *big.Int) (*big.Int, error) {
	var resp httpserver.BalanceResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/fund", httpserver.FundRequest{Amount: amount.String()}, &resp); err != nil {
		return nil, err
	}
	return resp.Balance, nil
}

// Withdraw sends the treasury to beneficiary and returns the amount withdrawn.
func (c *Client) Withdraw(ctx context.Context, beneficiary common.Address) (*big.Int, error) {
	var resp httpserver.AmountResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/withdraw", httpserver.WithdrawRequest{Beneficiary: beneficiary}, &resp); err != nil {
		return nil, err
	}
	return resp.Amount, nil
}

func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	var resp httpserver.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/balance", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balance, nil
}

// Relay triggers one relay pass.
func (c *Client) Relay(ctx context.Context) (*bridge.RelayReport, error) {
	var report bridge.RelayReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/relay", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Messages(ctx context.Context) ([]bridge.Message, error) {
	var messages []bridge.Message
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) Deployments(ctx context.Context) ([]interfaces.DeploymentRecord, error) {
	var records []interfaces.DeploymentRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/deployments", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
