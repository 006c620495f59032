package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sqlitoy/sqlitoy/internal/api"
	"github.com/sqlitoy/sqlitoy/internal/daemon"
	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/storage"
	"github.com/sqlitoy/sqlitoy/pkg/config"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the query server in the foreground",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
}

func loadConfig() *config.Config {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runServe() {
	cfg := loadConfig()
	if servePort > 0 {
		cfg.RestAPI.Port = servePort
	}
	if serveHost != "" {
		cfg.RestAPI.Host = serveHost
	}

	if err := cfg.EnsureDataDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "error preparing data directories: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.Engine.DBPath, cfg.Engine.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening storage: %v\n", err)
		os.Exit(1)
	}
	eng, err := engine.Open(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening engine: %v\n", err)
		os.Exit(1)
	}

	d := daemon.New(config.ConfigDir(), Version)
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error preparing config directory: %v\n", err)
		os.Exit(1)
	}
	if err := d.Start(cfg.RestAPI.Host, cfg.RestAPI.Port); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not register daemon state: %v\n", err)
	}
	defer d.Cleanup()

	server := api.NewServer(eng, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartWithContext(gctx, 10*time.Second)
	})
	g.Go(func() error {
		select {
		case <-sigChan:
			fmt.Println("\nshutdown signal received")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	fmt.Printf("sqlitoy v%s\n", Version)
	fmt.Printf("database: %s\n", cfg.Engine.DBPath)
	fmt.Printf("listening on %s:%d (press Ctrl+C to stop)\n", cfg.RestAPI.Host, cfg.RestAPI.Port)

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
