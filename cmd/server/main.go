// Command cloudvault-server runs the session protocol engine: it accepts
// TCP connections, authenticates users, and serves chunked file upload and
// download over the length-framed packet protocol in internal/protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/server"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudvault-server",
		Short: "Run the cloudvault session protocol engine",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	var adminUsername, adminPassword, adminEmail string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start accepting connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, adminUsername, adminPassword, adminEmail)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&adminUsername, "admin-username", "admin", "bootstrap admin username (created if no user with this name exists)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "changeme", "bootstrap admin password")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@localhost", "bootstrap admin email")
	return cmd
}

func runServe(configPath, adminUsername, adminPassword, adminEmail string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(configPath); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}

	holder, err := server.NewConfigHolder(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()

	if dir := filepath.Dir(cfg.LogFile); cfg.LogFile != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	log := logging.NewZap(logging.FileConfig{Path: cfg.LogFile})

	users, err := auth.NewFileUserRepository(cfg.UsersFile)
	if err != nil {
		return fmt.Errorf("init user store: %w", err)
	}
	if err := server.EnsureAdminUser(users, adminUsername, adminPassword, adminEmail); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	backend, err := storage.NewFilesystemBackend(cfg.StorageDir, log.With(logging.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("init storage backend: %w", err)
	}
	defer backend.Close()

	var storageBackend storage.Backend = backend
	if cfg.ErasureEnabled {
		shield, err := storage.NewErasureShield(backend, cfg.StorageDir, cfg.ErasureDataShards, cfg.ErasureParityShards, cfg.ErasureMinShielded)
		if err != nil {
			return fmt.Errorf("init erasure shield: %w", err)
		}
		storageBackend = shield
		log.Info("erasure shield enabled",
			logging.Int("data_shards", cfg.ErasureDataShards),
			logging.Int("parity_shards", cfg.ErasureParityShards))
	}

	srv := server.New(holder, log, users, storageBackend)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunHealthReporter(ctx, cfg.HealthInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
		_ = srv.Shutdown()
	}()

	return srv.Serve()
}

func writeDefaultConfig(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	const defaults = `listen_addr: ":9000"
max_concurrent_sessions: 100
session_timeout: 30m
sweep_interval: 1m
network_buffer_bytes: 8192
users_file: data/users/users.json
storage_dir: data/storage
log_file: logs/server.log
erasure_enabled: false
health_interval: 1m
`
	return os.WriteFile(path, []byte(defaults), 0o644)
}
