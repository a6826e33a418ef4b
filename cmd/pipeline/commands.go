package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-etl-scheduler/internal/api"
	"go-etl-scheduler/internal/api/handler"
	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/logger"
	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/internal/pipeline"
	"go-etl-scheduler/internal/scheduler"
	"go-etl-scheduler/internal/store"
	"go-etl-scheduler/pkg/router"
)

const shutdownTimeout = 5 * time.Second

var configPath string

// errRunFailed makes the run command exit non-zero.
var errRunFailed = errors.New("pipeline run failed")

// app holds what both commands need.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	history *store.RunStore
	runner  *pipeline.Runner
	sink    *pipeline.FileSink
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	history, err := store.InitDB(cfg.History.Path)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	runner, sink, err := pipeline.NewFromConfig(cfg, log, pipeline.WithRecorder(history))
	if err != nil {
		history.Close()
		log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: log, history: history, runner: runner, sink: sink}, nil
}

func (a *app) close() {
	if err := a.history.Close(); err != nil {
		a.logger.Warn("failed to close run history", zap.Error(err))
	}
	a.logger.Sync()
}

// NewServeCommand starts the scheduler and the control API.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on its interval and serve the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			sched := scheduler.New(a.runner, a.logger)
			if err := sched.Start(a.cfg.Interval()); err != nil {
				return err
			}
			defer sched.Stop()

			r := router.New(a.logger)
			api.RegisterRoutes(r, handler.New(sched, a.history, a.sink, a.logger))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("service started",
				zap.String("addr", a.cfg.HTTP.Addr),
				zap.Duration("interval", a.cfg.Interval()),
				zap.String("source", a.cfg.Source.Location),
				zap.String("destination", a.cfg.Destination.Driver+":"+a.cfg.Destination.Table))
			return r.ListenAndServe(ctx, a.cfg.HTTP.Addr, shutdownTimeout)
		},
	}
}

// NewRunCommand runs the pipeline once and prints the result.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			res := a.runner.RunPipeline(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Status == model.StatusFailed {
				return errRunFailed
			}
			return nil
		},
	}
}
