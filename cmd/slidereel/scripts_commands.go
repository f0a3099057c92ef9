package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slidereel/internal/api"
	"slidereel/internal/store"
)

func newScriptsCommand(ctx *commandContext) *cobra.Command {
	scriptsCmd := &cobra.Command{
		Use:   "scripts",
		Short: "Inspect and import video scripts",
	}
	scriptsCmd.AddCommand(newScriptsListCommand(ctx))
	scriptsCmd.AddCommand(newScriptsImportCommand(ctx))
	return scriptsCmd
}

func newScriptsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				scripts, err := st.ListRecentScripts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ScriptListResponse{Scripts: api.FromScripts(scripts)})
				}
				out := cmd.OutOrStdout()
				if len(scripts) == 0 {
					fmt.Fprintln(out, "No scripts found")
					return nil
				}
				rows := make([][]string, 0, len(scripts))
				for _, script := range scripts {
					rows = append(rows, []string{
						script.ID,
						script.Title,
						strconv.Itoa(len(script.Slides)),
						script.Status,
						humanize.Time(script.CreatedAt),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Title", "Slides", "Status", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of scripts to show")
	return cmd
}

// scriptFile is the on-disk import format.
type scriptFile struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status string        `json:"status"`
	Slides []store.Slide `json:"slides"`
}

func newScriptsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load a script record from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScriptFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.InsertScript(cmd.Context(), script); err != nil {
					if errors.Is(err, store.ErrDuplicate) {
						return fmt.Errorf("script %s already exists", script.ID)
					}
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromScript(script))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported script %s (%d slides)\n", script.ID, len(script.Slides))
				return nil
			})
		},
	}
}

func readScriptFile(path string) (*store.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	var file scriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse script file %s: %w", path, err)
	}
	if strings.TrimSpace(file.Title) == "" {
		return nil, fmt.Errorf("script file %s: title is required", path)
	}
	if len(file.Slides) == 0 {
		return nil, fmt.Errorf("script file %s: at least one slide is required", path)
	}
	return &store.Script{
		ID:     strings.TrimSpace(file.ID),
		Title:  strings.TrimSpace(file.Title),
		Status: strings.TrimSpace(file.Status),
		Slides: file.Slides,
	}, nil
}
