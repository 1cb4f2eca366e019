// Package consolectl is the terminal client for the groupbuy console. It
// shares the credential store with the console server, so signing in from
// either one signs in both.
package consolectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	entrypoint "github.com/louisbranch/groupbuy-console/internal/platform/cmd"
	"github.com/spf13/cobra"
)

// Options replaces the process streams and terminal checks, mainly for tests.
type Options struct {
	Out         io.Writer
	Err         io.Writer
	In          io.Reader
	Prompter    Prompter
	Interactive func() bool
}

func (o *Options) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Prompter == nil {
		o.Prompter = huhPrompter{}
	}
	if o.Interactive == nil {
		o.Interactive = stdinIsTerminal
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	opts Options
}

// NewRootCommand builds the consolectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	opts.defaults()
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:           entrypoint.ServiceConsoleCtl,
		Short:         "Operate the group-buy admin console from a terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.SetIn(opts.In)

	flags := root.PersistentFlags()
	flags.String("api-url", "", "backend API base URL (default from GROUPBUY_CONSOLE_API_URL)")
	flags.String("store-driver", "", "credential store driver: bbolt, sqlite or memory")
	flags.String("store-path", "", "credential store file")
	flags.BoolP("verbose", "v", false, "log backend calls to stderr")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.menuCommand(),
		c.passwdCommand(),
		c.getCommand(),
		c.downloadCommand(),
		c.resetCommand(),
	)
	return root
}

// config reads the environment, then lets explicitly set flags win.
func (c *cli) config(cmd *cobra.Command) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("store-driver") {
		cfg.Store.Driver, _ = flags.GetString("store-driver")
	}
	if flags.Changed("store-path") {
		cfg.Store.Path, _ = flags.GetString("store-path")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// with opens the store and session for one command and closes them after.
func (c *cli) with(cmd *cobra.Command, run func(ctx context.Context, a *app) error) error {
	cfg, err := c.config(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cfg, c.opts.Out, c.opts.Err)
	if err != nil {
		return err
	}
	defer a.close()
	return run(cmd.Context(), a)
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	opts.defaults()
	root := NewRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var shown *commandError
	if !errors.As(err, &shown) {
		fmt.Fprintf(opts.Err, "Error: %v\n", err)
	}
	if errors.Is(err, errNotSignedIn) {
		return 2
	}
	return 1
}
