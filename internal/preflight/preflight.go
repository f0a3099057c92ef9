package preflight

import (
	"context"

	"slidereel/internal/config"
	"slidereel/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every preflight check for the given config. The database
// check is skipped when db is nil.
func RunAll(ctx context.Context, cfg *config.Config, db Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Videos directory", cfg.Paths.VideosDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if db != nil {
		results = append(results, CheckDatabase(ctx, cfg.Database.Driver, db))
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, FromStatus(status))
	}
	return results
}

// Failed filters results down to those that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
