// Package server exposes the console gateway's HTTP API: UI configuration
// with the aggregated plugin menu, the caller's authorized-menu set, and
// permission-gated panel data.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmatic/console/pkg/access"
	"github.com/flowmatic/console/pkg/authz"
	"github.com/flowmatic/console/pkg/config"
	"github.com/flowmatic/console/pkg/domain"
	"github.com/flowmatic/console/pkg/menu"
	"github.com/flowmatic/console/pkg/panel"
	"github.com/flowmatic/console/pkg/telemetry"
)

// PluginsSurface is the permission identifier guarding the plugin menu in
// the UI config response.
const PluginsSurface = "Plugins"

// Options collects the collaborators the server needs.
type Options struct {
	Config   *config.Config
	Provider config.MenuProvider
	Authz    *authz.Engine
	Panels   *panel.Registry
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Server is the console gateway HTTP API.
type Server struct {
	cfg      *config.Config
	provider config.MenuProvider
	authz    *authz.Engine
	panels   *panel.Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// New validates the options and builds a server.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server requires a configuration")
	}
	if opts.Provider == nil {
		return nil, errors.New("server requires a menu provider")
	}
	if opts.Authz == nil {
		return nil, errors.New("server requires an authorization engine")
	}
	if opts.Panels == nil {
		opts.Panels = panel.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	return &Server{
		cfg:      opts.Config,
		provider: opts.Provider,
		authz:    opts.Authz,
		panels:   opts.Panels,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Handler builds the full middleware-wrapped API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.Handle("GET /api/ui/config", otelhttp.NewHandler(http.HandlerFunc(s.handleUIConfig), "console.ui_config"))
	mux.Handle("GET /api/ui/auth/menus", otelhttp.NewHandler(http.HandlerFunc(s.handleAuthMenus), "console.auth_menus"))
	mux.Handle("GET /api/ui/panels/{name}", otelhttp.NewHandler(http.HandlerFunc(s.handlePanelData), "console.panel_data"))

	var handler http.Handler = mux
	handler = IdentityMiddleware(handler)
	handler = s.metrics.MetricsMiddleware(handler)
	handler = AccessLogMiddleware(s.logger, handler)
	return handler
}

// UIConfigResponse is the payload of GET /api/ui/config: presentation keys
// plus the plugin menu the caller is entitled to see. PluginsMenu is null
// when there is nothing to render or the caller lacks the Plugins surface;
// clients must treat null as "no menu", not as an error.
type UIConfigResponse struct {
	InstanceName        string         `json:"instance_name"`
	PageSize            int            `json:"page_size"`
	AutoRefreshInterval int            `json:"auto_refresh_interval"`
	DefaultWrap         bool           `json:"default_wrap"`
	PluginsMenu         *menu.Rendered `json:"plugins_menu"`
}

func (s *Server) handleUIConfig(w http.ResponseWriter, r *http.Request) {
	resp := UIConfigResponse{
		InstanceName:        s.cfg.UI.InstanceName,
		PageSize:            s.cfg.UI.PageSize,
		AutoRefreshInterval: s.cfg.UI.AutoRefreshInterval,
		DefaultWrap:         s.cfg.UI.DefaultWrap,
	}

	set, err := s.authz.MenuSet(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		s.logger.Error("Menu entitlement evaluation failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "AUTHZ_FAILED", "authorization evaluation failed")
		return
	}

	if set.Contains(PluginsSurface) {
		m := menu.Build(s.provider.CurrentSnapshot().RawMenu)
		resp.PluginsMenu = m.Render()
		s.metrics.RecordMenuRebuild(resp.PluginsMenu != nil)
		telemetry.RecordMenuRebuild(r.Context(), resp.PluginsMenu != nil)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuthMenus(w http.ResponseWriter, r *http.Request) {
	set, err := s.authz.MenuSet(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		s.logger.Error("Menu entitlement evaluation failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "AUTHZ_FAILED", "authorization evaluation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, set)
}

// PanelResponse wraps gated panel data.
type PanelResponse struct {
	Panel string `json:"panel"`
	Data  any    `json:"data"`
}

func (s *Server) handlePanelData(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, ok := s.panels.Get(name)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "PANEL_NOT_FOUND", fmt.Sprintf("unknown panel %q", name))
		return
	}

	start := time.Now()

	set, err := s.authz.MenuSet(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		s.logger.Error("Menu entitlement evaluation failed", "panel", name, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "AUTHZ_FAILED", "authorization evaluation failed")
		return
	}

	state := access.Evaluate(&set, p.Permission)
	s.metrics.RecordGateDecision(name, state.String())
	telemetry.RecordGateDecision(r.Context(), telemetry.GateMetrics{
		Panel:    name,
		Outcome:  state.String(),
		Duration: time.Since(start),
	})

	if state != access.Authorized {
		// The data source must not run for an unentitled caller; the
		// denial is deterministic, not a fetch failure.
		s.writeError(w, r, http.StatusForbidden, "ACCESS_DENIED", "access denied")
		return
	}

	data, err := p.Source.Fetch(r.Context())
	if err != nil {
		s.logger.Error("Panel source failed", "panel", name, "error", err)
		s.metrics.RecordPanelFetchError(name)
		s.writeError(w, r, http.StatusBadGateway, "SOURCE_FAILED", "panel data unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, PanelResponse{Panel: name, Data: data})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := domain.ErrorResponse{Code: code, Message: message}

	if span := trace.SpanContextFromContext(r.Context()); span.HasTraceID() {
		resp.TraceID = span.TraceID().String()
	} else if id := RequestIDFromContext(r.Context()); id != "" {
		resp.TraceID = id
	}

	s.writeJSON(w, status, resp)
}
