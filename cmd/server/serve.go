package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adinsights "github.com/MegaGrindStone/ad-insights"
	"github.com/MegaGrindStone/ad-insights/internal/handlers"
	"github.com/MegaGrindStone/ad-insights/internal/images"
	"github.com/spf13/cobra"
)

const serveLongDesc string = `Serve the analysis over HTTP.

POST /process accepts either the image_name and heatmap_name of files in the images directory or
the image_file and heatmap_file uploads, and answers the three responses as JSON. A demonstration
page is served at /.`

const serveShortDesc string = "Run the HTTP service"

type serveCommander struct {
	root *rootCommander
	port string
}

func newServeCmd(root *rootCommander) *cobra.Command {
	cmder := &serveCommander{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.port, "port", "p", "", "Port to listen on, overrides the config")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	logger := c.root.logger()

	cfg, err := c.root.config(logger)
	if err != nil {
		return err
	}
	if c.port != "" {
		cfg.Port = c.port
	}

	wf, err := c.root.workflow(ctx, cfg, logger)
	if err != nil {
		return err
	}

	loader := images.NewLoader(cfg.ImagesDir, logger)
	m, err := handlers.NewMain(wf, loader, logger)
	if err != nil {
		return err
	}

	staticFS, err := fs.Sub(adinsights.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("error opening embedded static files: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Handler(http.FS(staticFS)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("imagesDir", cfg.ImagesDir))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error forcing server close: %w", err)
			}
		}
	}

	return nil
}
