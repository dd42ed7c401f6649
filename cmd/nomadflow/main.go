// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomadflowcode/nomadflow/internal/app"
	"github.com/nomadflowcode/nomadflow/internal/config"
	"github.com/nomadflowcode/nomadflow/internal/relay"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nomadflow",
		Short: "Local-first developer workflow over worktrees and a tmux session",
		Long:  `NomadFlow coordinates git worktrees and a tmux session behind an authenticated HTTP server, optionally exposed to the internet through a tunnel relay.`,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRelayCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the laptop server, its terminal daemon, and optional tunnel client",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(app.Options{
				ConfigPath: configPath,
				Host:       host,
				Port:       port,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return application.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", fmt.Sprintf("path to config.toml (default %s)", config.DefaultConfigPath()))
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides config)")

	return cmd
}

func newRelayCmd() *cobra.Command {
	var (
		secret   string
		boreHost string
		port     int
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the public tunnel relay (registration API + subdomain proxy)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relay.DefaultConfig()
			if secret != "" {
				cfg.Secret = secret
			} else {
				cfg.Secret = os.Getenv("RELAY_SECRET")
			}
			if boreHost != "" {
				cfg.BoreHost = boreHost
			} else if v := os.Getenv("BORE_HOST"); v != "" {
				cfg.BoreHost = v
			}
			if port != 0 {
				cfg.Port = port
			} else if v := os.Getenv("RELAY_PORT"); v != "" {
				fmt.Sscanf(v, "%d", &cfg.Port)
			}

			server := relay.NewServer(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(ctx) }()

			select {
			case <-ctx.Done():
				return server.Shutdown(context.Background())
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared registration secret (default from $RELAY_SECRET)")
	cmd.Flags().StringVar(&boreHost, "bore-host", "", "host where tunnel backend ports are reachable (default from $BORE_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "relay listen port (default from $RELAY_PORT)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nomadflow version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nomadflow %s\n", version)
		},
	}
}
