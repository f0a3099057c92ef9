package main

import (
	"log/slog"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/daemon"
	"slidereel/internal/janitor"
	"slidereel/internal/pipeline"
	"slidereel/internal/store"
)

// buildDaemon opens the store and wires the orchestrator and janitor. The
// store is owned by the returned daemon.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.NewFromConfig(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	var jan *janitor.Janitor
	if cfg.Janitor.Enabled {
		arts, err := artifacts.New(cfg.Paths.VideosDir)
		if err != nil {
			st.Close()
			return nil, err
		}
		if jan, err = janitor.New(cfg, st, arts, logger); err != nil {
			st.Close()
			return nil, err
		}
	}

	d, err := daemon.New(cfg, st, orch, jan, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return d, nil
}
