package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nettolabs/netto/internal/core/db"
	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/server"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP calculation API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr, _ = cmd.Flags().GetString("addr")
	}
	log := newLogger(cfg)

	conn, err := db.Open(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	// Refuse to serve against an unmigrated database.
	var migrationID string
	err = conn.Get(&migrationID,
		conn.Rebind("SELECT migration_id FROM migrations WHERE migration_id = ?"),
		"001_rulesets.sql")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("schema not migrated; run 'netto migrate' first")
		}
		return fmt.Errorf("checking migrations: %w", err)
	}

	queries, err := db.LoadQueries(conn)
	if err != nil {
		return fmt.Errorf("loading queries: %w", err)
	}

	srv := server.New(log, queries, rules.DefaultRegistry(), cfg.RequestTimeout)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting netto API", "version", Version, "addr", cfg.Addr)
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}
