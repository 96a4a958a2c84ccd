// Package cli is the notes command tree. Every command returns an exit
// code: 0 ok, 1 runtime error, 2 usage error.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/auth"
	"github.com/Makepad-fr/notes/internal/config"
	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/gateway/wsgateway"
	"github.com/Makepad-fr/notes/internal/logger"
	"github.com/Makepad-fr/notes/internal/origin"
	"github.com/Makepad-fr/notes/internal/synchronizer"
	"github.com/Makepad-fr/notes/internal/tui"
	"github.com/Makepad-fr/notes/internal/ui"
)

// Env is everything a command touches outside the process.
type Env struct {
	In       io.Reader
	Out, Err io.Writer

	Config      func() (*config.Config, error)
	Logger      func(cfg *config.Config) (*zap.Logger, error)
	Gateway     func(cfg *config.Config, token string, log *zap.Logger) (gateway.Gateway, error)
	Credentials *auth.Credentials
}

// DefaultEnv talks to the real terminal, config files and server.
func DefaultEnv() Env {
	return Env{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Config:      config.Load,
		Logger:      func(cfg *config.Config) (*zap.Logger, error) { return logger.NewFileLogger(cfg.LogFile, cfg.Debug) },
		Gateway:     dialServer,
		Credentials: auth.New(config.Dir()),
	}
}

func dialServer(cfg *config.Config, token string, log *zap.Logger) (gateway.Gateway, error) {
	return wsgateway.New(cfg.ServerURL,
		wsgateway.WithToken(token),
		wsgateway.WithLogger(log),
		wsgateway.WithHTTPClient(&http.Client{Timeout: cfg.CallTimeout}),
	)
}

// Execute runs the command line against the default environment and
// cancels on SIGINT/SIGTERM.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, args, DefaultEnv())
}

// usageError marks errors that exit with 2.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// Run executes args and returns the exit code.
func Run(ctx context.Context, args []string, env Env) int {
	a := &app{env: env, theme: ui.ThemeByName("classic"), log: zap.NewNop()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	err := root.ExecuteContext(ctx)
	_ = logger.Sync(a.log)
	if err == nil {
		return 0
	}
	a.theme.Fail(env.Err, err.Error())
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(env.Err, a.theme.Muted.Render("Run `notes --help` for usage."))
		return 2
	}
	return 1
}

type app struct {
	env   Env
	cfg   *config.Config
	theme ui.Theme
	log   *zap.Logger

	server    string
	themeFlag string
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notes",
		Short: "A shared note list with live updates",
		Long: `notes keeps a list of notes in sync with a notes server.
Without a subcommand it opens the interactive list.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.PersistentFlags().StringVar(&a.server, "server", "", "notes server URL (overrides NOTES_SERVER_URL)")
	root.PersistentFlags().StringVar(&a.themeFlag, "theme", "", "color theme: classic, neon or mono")

	root.AddCommand(
		a.lsCmd(),
		a.addCmd(),
		a.doneCmd(),
		a.rmCmd(),
		a.watchCmd(),
		a.authCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := a.env.Config()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.server != "" {
		cfg.ServerURL = a.server
	}
	if a.themeFlag != "" {
		cfg.Theme = a.themeFlag
	}
	a.cfg = cfg
	a.theme = ui.ThemeByName(cfg.Theme)

	log, err := a.env.Logger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	return nil
}

func (a *app) token() (string, error) {
	ti, err := a.env.Credentials.Token()
	if err != nil {
		return "", err
	}
	if ti == nil {
		return "", nil
	}
	return ti.Token, nil
}

// failures collects mutation errors reported by a session.
type failures struct {
	ch chan *synchronizer.MutationError
}

func (f *failures) report(err *synchronizer.MutationError) {
	select {
	case f.ch <- err:
	default:
	}
}

// drain returns what has been reported so far.
func (f *failures) drain() []error {
	var out []error
	for {
		select {
		case err := <-f.ch:
			out = append(out, err)
		default:
			return out
		}
	}
}

// session connects a synchronizer and waits for the first load.
func (a *app) session(ctx context.Context) (*synchronizer.Synchronizer, *failures, error) {
	token, err := a.token()
	if err != nil {
		return nil, nil, err
	}
	gw, err := a.env.Gateway(a.cfg, token, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	f := &failures{ch: make(chan *synchronizer.MutationError, 16)}
	s := synchronizer.New(gw, origin.New(),
		synchronizer.WithLogger(a.log),
		synchronizer.WithCallTimeout(a.cfg.CallTimeout),
		synchronizer.WithFailureHandler(f.report),
	)
	if err := s.Initialize(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("connect to %s: %w", a.cfg.ServerURL, err)
	}
	return s, f, nil
}

// loaded waits for the initial list and fails if it could not be fetched.
func (a *app) loaded(ctx context.Context, s *synchronizer.Synchronizer) error {
	select {
	case <-s.Ready():
	case <-time.After(a.cfg.CallTimeout):
		return fmt.Errorf("timed out loading notes from %s", a.cfg.ServerURL)
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.State().LoadError {
		return fmt.Errorf("could not load notes from %s", a.cfg.ServerURL)
	}
	return nil
}

// settle waits for in-flight calls and turns reported failures into an error.
func settle(s *synchronizer.Synchronizer, f *failures) error {
	s.Wait()
	return errors.Join(f.drain()...)
}

func (a *app) runTUI(ctx context.Context) error {
	s, f, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := tui.Run(s, f.ch, a.theme); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	s.Wait()
	return nil
}
