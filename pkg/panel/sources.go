package panel

import (
	"context"

	"github.com/flowmatic/console/pkg/config"
	"github.com/flowmatic/console/pkg/menu"
)

// DashboardStats is the payload of the statistics panel.
type DashboardStats struct {
	Generation    int64  `json:"generation"`
	LoadedAt      string `json:"loaded_at"`
	MenuItems     int    `json:"menu_items"`
	TopLevelItems int    `json:"top_level_items"`
	Categories    int    `json:"categories"`
}

// StatsSource derives dashboard statistics from the current menu snapshot.
// A malformed or empty menu counts as zero everywhere; the stats panel never
// fails because plugins misbehave.
func StatsSource(provider config.MenuProvider) Source {
	return SourceFunc(func(_ context.Context) (any, error) {
		snap := provider.CurrentSnapshot()
		stats := DashboardStats{
			Generation: snap.Generation,
			LoadedAt:   snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}

		if m := menu.Build(snap.RawMenu); m != nil {
			stats.TopLevelItems = len(m.TopLevel)
			stats.Categories = len(m.Groups)
			stats.MenuItems = len(m.TopLevel)
			for _, g := range m.Groups {
				stats.MenuItems += len(g.Items)
			}
		}

		return stats, nil
	})
}

// ConfigView is the payload of the configuration viewer panel: the running
// presentation settings, nothing operational or secret.
type ConfigView struct {
	InstanceName        string `json:"instance_name"`
	PageSize            int    `json:"page_size"`
	AutoRefreshInterval int    `json:"auto_refresh_interval"`
	DefaultWrap         bool   `json:"default_wrap"`
	ManifestDir         string `json:"manifest_dir,omitempty"`
	ManifestFile        string `json:"manifest_file,omitempty"`
}

// ConfigSource exposes the gateway's UI configuration as a panel.
func ConfigSource(cfg *config.Config) Source {
	return SourceFunc(func(_ context.Context) (any, error) {
		return ConfigView{
			InstanceName:        cfg.UI.InstanceName,
			PageSize:            cfg.UI.PageSize,
			AutoRefreshInterval: cfg.UI.AutoRefreshInterval,
			DefaultWrap:         cfg.UI.DefaultWrap,
			ManifestDir:         cfg.Menu.ManifestDir,
			ManifestFile:        cfg.Menu.ManifestFile,
		}, nil
	})
}
