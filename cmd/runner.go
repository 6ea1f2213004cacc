package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/audio"
	"github.com/desertthunder/hlsx/internal/metrics"
	"github.com/desertthunder/hlsx/internal/player"
	"github.com/desertthunder/hlsx/internal/repositories"
	"github.com/desertthunder/hlsx/internal/services"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		playCommand, serveCommand, setupCommand, tokenCommand, positionCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the file named by --config, falling back to defaults when it does not exist.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.LoadConfigOrDefault(path)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return ctx, nil
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) openRepositories() (*sql.DB, *repositories.TokenRepository, *repositories.PositionRepository, error) {
	db, tokens, positions, err := repositories.Open(r.config.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, tokens, positions, nil
}

func (r *Runner) newSigner(ctx context.Context, tokens *repositories.TokenRepository) *services.SigningService {
	return services.NewSigningServiceFromConfig(
		ctx,
		r.config.Signing,
		repositories.NewTokenStoreAdapter(tokens),
		shared.WithLogger(r.logger, "component", "signing"),
	)
}

// sessionOpts are the per-command overrides for a playback session.
type sessionOpts struct {
	out    string
	volume int // -1 keeps player.volume
	muted  bool
}

// session bundles everything a playing manager depends on.
type session struct {
	db      *sql.DB
	sink    *audio.ClockSink
	manager *player.Manager
	metrics *metrics.Metrics
}

// Close stops playback and releases the sink and database.
func (s *session) Close() error {
	merr := s.manager.Close()
	serr := s.sink.Close()
	derr := s.db.Close()
	for _, err := range []error{merr, serr, derr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// startSession opens storage, builds the signer, sink and manager, and starts the sink clock until ctx is done.
func (r *Runner) startSession(ctx context.Context, opts sessionOpts) (*session, error) {
	w, err := openOutput(opts.out)
	if err != nil {
		return nil, err
	}

	db, tokens, positions, err := r.openRepositories()
	if err != nil {
		return nil, err
	}

	volume := r.config.Player.Volume
	if opts.volume >= 0 {
		volume = opts.volume
	}

	sink := audio.NewClockSink(w)
	m := metrics.NewMetrics()
	managerOpts := player.ManagerOpts{
		Signer:          r.newSigner(ctx, tokens),
		Sink:            sink,
		NewEngine:       player.HLSEngine(r.httpClient, shared.WithLogger(r.logger, "component", "hls"), 0),
		Metrics:         m,
		Logger:          shared.WithLogger(r.logger, "component", "player"),
		RefreshCooldown: r.config.Player.RefreshCooldown(),
		Volume:          volume,
		Muted:           opts.muted || r.config.Player.Muted,
		Autoplay:        r.config.Player.Autoplay,
	}
	if r.config.Player.ResumePositions {
		managerOpts.Positions = repositories.NewPositionStoreAdapter(positions)
	}

	manager, err := player.NewManager(managerOpts)
	if err != nil {
		sink.Close()
		db.Close()
		return nil, err
	}

	go sink.Run(ctx, audio.DefaultTickInterval)
	return &session{db: db, sink: sink, manager: manager, metrics: m}, nil
}

// openOutput resolves the --out flag: empty discards media, "-" is stdout.
func openOutput(path string) (io.Writer, error) {
	switch path {
	case "":
		return io.Discard, nil
	case "-":
		return keepOpen{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	return f, nil
}

// keepOpen hides Close so [audio.ClockSink.Close] leaves stdout open.
type keepOpen struct{ io.Writer }

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
