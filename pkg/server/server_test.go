package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/console/pkg/authz"
	"github.com/flowmatic/console/pkg/config"
	"github.com/flowmatic/console/pkg/domain"
	"github.com/flowmatic/console/pkg/panel"
)

type stubProvider struct {
	snap domain.Snapshot
}

func (s stubProvider) CurrentSnapshot() domain.Snapshot  { return s.snap }
func (s stubProvider) Subscribe() <-chan domain.Snapshot { return nil }
func (s stubProvider) Close() error                      { return nil }

func validMenu() any {
	return []any{
		map[string]any{"name": "DingTalk", "href": "/dingtalk", "category": "Messaging"},
		map[string]any{"name": "Docs", "href": "/docs", "category": nil},
	}
}

func newTestServer(t *testing.T, raw any) *Server {
	t.Helper()

	cfg := &config.Config{}
	require.NoError(t, cfg.Validate())

	engine, err := authz.NewEngine(context.Background(), authz.Options{})
	require.NoError(t, err)

	panels := panel.NewRegistry()
	require.NoError(t, panels.Register(panel.Panel{
		Name:       "stats",
		Permission: "Stats",
		Source:     panel.SourceFunc(func(context.Context) (any, error) { return map[string]any{"count": 3}, nil }),
	}))
	require.NoError(t, panels.Register(panel.Panel{
		Name:       "config",
		Permission: "Config",
		Source:     panel.SourceFunc(func(context.Context) (any, error) { return nil, errors.New("backend down") }),
	}))

	srv, err := New(Options{
		Config:   cfg,
		Provider: stubProvider{snap: domain.Snapshot{Generation: 1, RawMenu: raw}},
		Authz:    engine,
		Panels:   panels,
	})
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, handler http.Handler, path, subject, roles string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if subject != "" {
		req.Header.Set(SubjectHeader, subject)
	}
	if roles != "" {
		req.Header.Set(RolesHeader, roles)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	_ = res.Body.Close()
	return res, body
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()
	res, body := doRequest(t, handler, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestAuthMenus(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/auth/menus", "alice", "viewer")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var set domain.MenuSet
	require.NoError(t, json.Unmarshal(body, &set))
	assert.Equal(t, []string{"Stats"}, set.AuthorizedMenuItems)
}

func TestAuthMenusAnonymousGetsNothing(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/auth/menus", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var set domain.MenuSet
	require.NoError(t, json.Unmarshal(body, &set))
	assert.Empty(t, set.AuthorizedMenuItems)
}

func TestUIConfigIncludesMenuForEntitled(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/config", "alice", "admin")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp UIConfigResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	assert.Equal(t, "Console", resp.InstanceName)
	assert.Equal(t, 30, resp.AutoRefreshInterval)
	require.NotNil(t, resp.PluginsMenu)
	require.Len(t, resp.PluginsMenu.Buttons, 1)
	assert.Equal(t, "Docs", resp.PluginsMenu.Buttons[0].Name)
	require.Len(t, resp.PluginsMenu.Groups, 1)
	assert.Equal(t, "Messaging", resp.PluginsMenu.Groups[0].Name)
}

func TestUIConfigOmitsMenuWithoutPluginsSurface(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/config", "alice", "viewer")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp UIConfigResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Nil(t, resp.PluginsMenu)
}

func TestUIConfigMalformedMenuIsSilent(t *testing.T) {
	handler := newTestServer(t, "not a menu").Handler()

	res, body := doRequest(t, handler, "/api/ui/config", "alice", "admin")
	require.Equal(t, http.StatusOK, res.StatusCode, "malformed plugin input must not surface as an error")

	var resp UIConfigResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Nil(t, resp.PluginsMenu)
}

func TestPanelDataAuthorized(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/panels/stats", "alice", "viewer")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp PanelResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "stats", resp.Panel)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["count"])
}

func TestPanelDataDenied(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	// viewer has Stats but not Config.
	res, body := doRequest(t, handler, "/api/ui/panels/config", "alice", "viewer")
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	var errResp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "ACCESS_DENIED", errResp.Code)
}

func TestPanelDataDenialNeverTouchesSource(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Validate())

	engine, err := authz.NewEngine(context.Background(), authz.Options{})
	require.NoError(t, err)

	touched := false
	panels := panel.NewRegistry()
	require.NoError(t, panels.Register(panel.Panel{
		Name:       "secret",
		Permission: "Config",
		Source: panel.SourceFunc(func(context.Context) (any, error) {
			touched = true
			return "secret", nil
		}),
	}))

	srv, err := New(Options{
		Config:   cfg,
		Provider: stubProvider{},
		Authz:    engine,
		Panels:   panels,
	})
	require.NoError(t, err)

	res, _ := doRequest(t, srv.Handler(), "/api/ui/panels/secret", "mallory", "viewer")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.False(t, touched, "the gated source must not run for a denied principal")
}

func TestPanelDataSourceFailure(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	// admin is entitled to Config, so the failing source runs and the
	// error is distinct from a denial.
	res, body := doRequest(t, handler, "/api/ui/panels/config", "root", "admin")
	require.Equal(t, http.StatusBadGateway, res.StatusCode)

	var errResp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "SOURCE_FAILED", errResp.Code)
}

func TestPanelDataUnknownPanel(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	res, body := doRequest(t, handler, "/api/ui/panels/ghost", "alice", "admin")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	var errResp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "PANEL_NOT_FOUND", errResp.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Result().Header.Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(t, validMenu()).Handler()

	// Generate some traffic first so counters exist.
	_, _ = doRequest(t, handler, "/api/ui/panels/stats", "alice", "viewer")

	res, body := doRequest(t, handler, "/metrics", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "console_gate_decisions_total")
}
