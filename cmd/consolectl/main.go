// Package main is the entry point for consolectl, a terminal client for the
// console gateway.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowmatic/console/pkg/access"
	"github.com/flowmatic/console/pkg/client"
	"github.com/flowmatic/console/pkg/domain"
	"github.com/flowmatic/console/pkg/logging"
	"github.com/flowmatic/console/pkg/menu"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type clientFlags struct {
	server  string
	subject string
	roles   []string
	timeout time.Duration
}

func (f *clientFlags) build() *client.Client {
	return client.New(client.Config{
		BaseURL: f.server,
		Subject: f.subject,
		Roles:   f.roles,
		Timeout: f.timeout,
	})
}

// newRootCmd creates the root command for consolectl.
func newRootCmd() *cobra.Command {
	flags := &clientFlags{}

	rootCmd := &cobra.Command{
		Use:   "consolectl",
		Short: "Terminal client for the console gateway",
		Long: `consolectl queries a running consoled instance as a given principal:
it can print the navigation menu the principal is entitled to, fetch a
single dashboard panel, or keep a set of panels refreshed on a fixed
interval.

Example:
  consolectl --subject alice --roles operator menu`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.server, "server", "s", "http://localhost:8085", "Base URL of the console gateway")
	rootCmd.PersistentFlags().StringVarP(&flags.subject, "subject", "u", "", "Principal subject to act as")
	rootCmd.PersistentFlags().StringSliceVarP(&flags.roles, "roles", "r", nil, "Roles granted to the principal")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 15*time.Second, "Request timeout")

	rootCmd.AddCommand(newMenuCmd(flags))
	rootCmd.AddCommand(newPanelCmd(flags))
	rootCmd.AddCommand(newWatchCmd(flags))

	return rootCmd
}

func newMenuCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the menu the principal is entitled to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli := flags.build()

			set, err := cli.FetchMenuSet(cmd.Context())
			if err != nil {
				return err
			}
			uiCfg, err := cli.FetchUIConfig(cmd.Context())
			if err != nil {
				return err
			}

			out := struct {
				AuthorizedMenuItems []string       `json:"authorized_menu_items"`
				PluginsMenu         *menu.Rendered `json:"plugins_menu,omitempty"`
			}{
				AuthorizedMenuItems: set.AuthorizedMenuItems,
				PluginsMenu:         uiCfg.PluginsMenu,
			}
			return printJSON(cmd, out)
		},
	}
}

func newPanelCmd(flags *clientFlags) *cobra.Command {
	var permission string

	cmd := &cobra.Command{
		Use:   "panel <name>",
		Short: "Fetch one dashboard panel's data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := flags.build()
			name := args[0]

			if permission != "" {
				set, err := cli.FetchMenuSet(cmd.Context())
				if err != nil {
					return fmt.Errorf("entitlements unavailable, not fetching panel: %w", err)
				}
				if access.Evaluate(set, permission) == access.Denied {
					return fmt.Errorf("panel %q: %w", name, domain.ErrAccessDenied)
				}
			}

			data, err := cli.FetchPanel(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printJSON(cmd, json.RawMessage(data))
		},
	}

	cmd.Flags().StringVarP(&permission, "permission", "p", "", "Check this menu entitlement locally before fetching")
	return cmd
}

func newWatchCmd(flags *clientFlags) *cobra.Command {
	var (
		interval time.Duration
		panels   []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep panels refreshed and print each cycle's view states",
		Long: `watch polls the gateway on a fixed interval. Each panel is bound to a
menu entitlement (name=permission); a panel's data is fetched only while
the principal's entitlements include its permission.

Example:
  consolectl -u alice -r operator watch --panel stats=Stats --panel config=Config`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bindings, err := parseBindings(panels)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(logging.Config{Level: "info", Pretty: true})
			refresher := client.NewRefresher(flags.build(), interval, bindings, logger)

			go refresher.Run(cmd.Context())

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					printViews(cmd, refresher.Views())
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	cmd.Flags().StringArrayVar(&panels, "panel", nil, "Panel binding as name=permission (repeatable)")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func parseBindings(specs []string) ([]client.Binding, error) {
	bindings := make([]client.Binding, 0, len(specs))
	for _, raw := range specs {
		name, permission, ok := strings.Cut(raw, "=")
		if !ok || name == "" || permission == "" {
			return nil, fmt.Errorf("invalid panel binding %q, expected name=permission", raw)
		}
		bindings = append(bindings, client.Binding{Panel: name, Permission: permission})
	}
	if len(bindings) == 0 {
		return nil, errors.New("at least one --panel binding is required")
	}
	return bindings, nil
}

func printViews(cmd *cobra.Command, views map[string]client.View) {
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		view := views[name]
		switch view.State {
		case access.Authorized:
			if view.Err != nil {
				cmd.Printf("%s: error: %v\n", name, view.Err)
				continue
			}
			cmd.Printf("%s: %s\n", name, string(view.Data))
		case access.Denied:
			cmd.Printf("%s: access denied\n", name)
		default:
			cmd.Printf("%s: authorization pending\n", name)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(encoded))
	return nil
}
