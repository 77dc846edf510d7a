package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/repositories"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/services"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	spotify  services.Service
	tracks   *repositories.TrackRepository
	features *repositories.AudioFeatureRepository
	store    *checkpoint.Store
	engine   *tasks.MergeEngine
	logger   *log.Logger
	input    io.Reader
	output   io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Spotify  services.Service
	Tracks   *repositories.TrackRepository
	Features *repositories.AudioFeatureRepository
	Store    *checkpoint.Store
	Logger   *log.Logger
	Input    io.Reader
	Output   io.Writer
}

// NewRunner creates a new Runner with the provided configuration. The merge
// engine is only assembled when the canonical store and checkpoint store are
// wired; commands that need it check for nil and point at `merger setup`.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var engine *tasks.MergeEngine
	if opts.Tracks != nil && opts.Store != nil {
		policy := retry.NewPolicy(opts.Config.Retry.MaxAttempts, opts.Logger)
		engine = tasks.NewMergeEngine(
			opts.Spotify, opts.Tracks, opts.Features, opts.Store,
			policy, engineOptions(opts.Config), opts.Logger,
		)
	}

	return &Runner{
		config:   opts.Config,
		spotify:  opts.Spotify,
		tracks:   opts.Tracks,
		features: opts.Features,
		store:    opts.Store,
		engine:   engine,
		logger:   opts.Logger,
		input:    opts.Input,
		output:   opts.Output,
	}
}

// engineOptions maps the config's tuning sections onto engine options.
func engineOptions(config *shared.Config) tasks.Options {
	return tasks.Options{
		PageSize:      config.Fetch.PageSize,
		BatchSize:     config.Write.BatchSize,
		PlaylistLimit: config.Write.PlaylistLimit,
		Pace:          time.Duration(config.Write.PaceMS) * time.Millisecond,
	}
}

// SetLogger swaps the runner's logger, e.g. for a file logger while a TUI
// owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, ingestCommand, reportCommand, mergeCommand, featuresCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// confirm prompts for a y/yes answer on the runner's input.
func (r *Runner) confirm(prompt string) (bool, error) {
	r.writePlain("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// consumeProgress drains engine progress updates onto the output until the
// channel closes, then closes done.
func (r *Runner) consumeProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.FetchSource:
			r.writePlain("📥 %s\n", update.Message)
		case tasks.StoreSource:
			r.writePlain("💾 %s\n", update.Message)
		case tasks.CreateTarget:
			r.writePlain("📝 %s\n", update.Message)
		case tasks.WriteTracks:
			r.writePlain("   %s\n", update.Message)
		case tasks.FetchFeatures:
			r.writePlain("🎧 %s\n", update.Message)
		}
	}
}
