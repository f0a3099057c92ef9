package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"slidereel/internal/deps"
)

// CheckDirectoryAccess verifies a directory exists and is readable, writable
// and traversable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}

	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not accessible: %v", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDatabase pings the backing store with a short timeout.
func CheckDatabase(ctx context.Context, driver string, db Pinger) Result {
	name := "Database"
	if driver != "" {
		name = fmt.Sprintf("Database (%s)", driver)
	}
	if db == nil {
		return Result{Name: name, Detail: "not opened"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Ping(checkCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "ping timed out"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// FromStatus converts a binary availability status into a check result.
// Optional binaries never fail preflight.
func FromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available && detail == "" {
		detail = status.Command
	}
	return Result{
		Name:   status.Name,
		Passed: status.Available || status.Optional,
		Detail: detail,
	}
}
