// Package client consumes the console gateway API. It implements the
// client half of panel gating: the authorized-menu set is fetched first and
// a panel's data request is only ever issued once that set proves the caller
// entitled.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flowmatic/console/pkg/domain"
	"github.com/flowmatic/console/pkg/menu"
)

// Config holds console client settings.
type Config struct {
	BaseURL string
	Subject string
	Roles   []string
	Timeout time.Duration
}

// Client talks to the console gateway on behalf of one principal.
type Client struct {
	http *resty.Client
}

// New builds a client with sane defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8085"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	if cfg.Subject != "" {
		cli.SetHeader("X-Console-Subject", cfg.Subject)
	}
	if len(cfg.Roles) > 0 {
		cli.SetHeader("X-Console-Roles", strings.Join(cfg.Roles, ","))
	}

	return &Client{http: cli}
}

// UIConfig mirrors the gateway's UI config response.
type UIConfig struct {
	InstanceName        string         `json:"instance_name"`
	PageSize            int            `json:"page_size"`
	AutoRefreshInterval int            `json:"auto_refresh_interval"`
	DefaultWrap         bool           `json:"default_wrap"`
	PluginsMenu         *menu.Rendered `json:"plugins_menu"`
}

// FetchUIConfig retrieves the console presentation settings and the plugin
// menu. A null menu means nothing to render; it is not an error.
func (c *Client) FetchUIConfig(ctx context.Context) (*UIConfig, error) {
	var cfg UIConfig
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&cfg).
		Get("/api/ui/config")
	if err != nil {
		return nil, fmt.Errorf("ui config request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ui config request: unexpected status %d", resp.StatusCode())
	}
	return &cfg, nil
}

// FetchMenuSet retrieves the authorized-menu set for the client's principal.
func (c *Client) FetchMenuSet(ctx context.Context) (*domain.MenuSet, error) {
	var set domain.MenuSet
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&set).
		Get("/api/ui/auth/menus")
	if err != nil {
		return nil, fmt.Errorf("auth menus request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("auth menus request: unexpected status %d", resp.StatusCode())
	}
	return &set, nil
}

// FetchPanel retrieves one panel's data. Callers are expected to have
// settled entitlement first; a 403 still maps onto the domain denial error
// in case the server view of entitlement has moved since.
func (c *Client) FetchPanel(ctx context.Context, name string) (json.RawMessage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/ui/panels/" + name)
	if err != nil {
		return nil, fmt.Errorf("panel %s request: %w", name, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, fmt.Errorf("panel %s: %w", name, domain.ErrAccessDenied)
	case http.StatusNotFound:
		return nil, fmt.Errorf("panel %s: %w", name, domain.ErrPanelNotFound)
	default:
		return nil, fmt.Errorf("panel %s: %w: status %d", name, domain.ErrSourceFailed, resp.StatusCode())
	}

	var payload struct {
		Panel string          `json:"panel"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("panel %s: decode response: %w", name, err)
	}
	return payload.Data, nil
}
