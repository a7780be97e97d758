package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/api"
	"github.com/abhisek/prepcoach/internal/assessment"
	"github.com/abhisek/prepcoach/internal/config"
	"github.com/abhisek/prepcoach/internal/progress"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the progress sync and grading server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides PREPCOACH_API_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd, func(c *config.Config) {
		// The server never syncs to another server, and logs requests.
		c.RemoteURL = ""
		if c.LogMode == "quiet" {
			c.LogMode = "prod"
		}
	})
	if err != nil {
		return err
	}
	defer e.close()

	if e.cfg.JWTSecret == "" {
		return errors.New("PREPCOACH_JWT_SECRET is required to serve")
	}
	addr := e.cfg.APIAddr
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		addr = a
	}

	repo := progress.NewStoreRepository(e.store.SnapshotRepo(), e.cfg.SnapshotKeep)
	sub := assessment.NewLocalSubmitter(e.catalog, e.store.AttemptRepo(), "", e.log)
	h := api.NewHandler(repo, sub, e.store.AttemptRepo(), []byte(e.cfg.JWTSecret), e.log)

	srv := &http.Server{
		Addr:         addr,
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		e.log.Info("server listening", "addr", srv.Addr, "journey_id", e.journeyID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	stop()

	e.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	e.log.Info("server stopped")
	return nil
}
