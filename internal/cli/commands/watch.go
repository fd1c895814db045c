package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
	"github.com/leapstack-labs/schemagen/internal/task"
)

const watchDebounce = 300 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var compile bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch inputs and regenerate on change",
		Long: `Watch the input files of every generator block and rerun generation
whenever one changes. Changes are debounced, so a burst of writes triggers
a single run. Press Ctrl+C to stop.`,
		Example: `  # Regenerate on schema changes
  schemagen watch

  # Also recompile after each regeneration
  schemagen watch --compile`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, compile)
		},
	}

	cmd.Flags().BoolVar(&compile, "compile", false, "Run the compile step after each regeneration")
	return cmd
}

func runWatch(cmd *cobra.Command, compile bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	eng := cmdCtx.Engine
	r := cmdCtx.Renderer
	logger := cmdCtx.Logger

	dirs := watchDirs(cfg.ProjectRoot, collectInputs(cfg))
	if len(dirs) == 0 {
		return fmt.Errorf("no generator inputs to watch; add inputs to your generator blocks")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	outputDirs := make([]string, 0, len(cfg.Generators))
	for _, gen := range cfg.Generators {
		outputDirs = append(outputDirs, gen.OutputDir)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		logger.Debug("watching", "dir", dir)
	}

	r.Printf("Watching %d directories, press Ctrl+C to stop\n", len(dirs))

	sel := task.Selection{Generate: true, Compile: compile}
	runOnce := func() {
		if _, err := eng.Run(context.Background(), sel); err != nil {
			r.Errorf("run failed: %v\n", err)
		} else {
			r.Println("Regenerated")
		}
	}

	// Initial run so the watcher starts from a consistent state.
	runOnce()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if underAny(event.Name, outputDirs) {
				continue
			}
			logger.Debug("change detected", "file", event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-sigCh:
			r.Println("Stopping")
			return nil
		}
	}
}

// collectInputs gathers every input glob of every generator.
func collectInputs(cfg *config.Config) []string {
	var globs []string
	for _, name := range cfg.GeneratorNames() {
		globs = append(globs, cfg.Generators[name].Inputs...)
	}
	return globs
}

// watchDirs reduces globs to the set of directories to watch. Glob
// metacharacters cannot be watched directly, so each pattern contributes
// its longest literal directory prefix.
func watchDirs(projectRoot string, globs []string) []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	for _, g := range globs {
		dir := g
		for strings.ContainsAny(dir, "*?[") {
			dir = filepath.Dir(dir)
		}
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		add(dir)
	}

	sort.Strings(dirs)
	return dirs
}

func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
