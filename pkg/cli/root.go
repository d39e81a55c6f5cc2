package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/portal/pkg/config"
)

// ErrRedirected is returned when a protected command is turned away by the route guard
var ErrRedirected = errors.New("redirected")

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// App carries what every command needs: output streams, the CLI logger and
// the configuration loader.
type App struct {
	Out        io.Writer
	Err        io.Writer
	Log        *logrus.Logger
	LoadConfig func() (*config.Config, error)
	Verbose    bool
}

// NewApp creates an App writing to out and errOut
func NewApp(out, errOut io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &App{
		Out:        out,
		Err:        errOut,
		Log:        setupLogger(errOut, false),
		LoadConfig: config.LoadConfig,
	}
}

func setupLogger(output io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "portal",
		Description: "Portal - admin portal session and user management",
		Subcommands: make(map[string]*Command),
		Flags:       newFlagSet(app, "portal"),
	}
	root.Flags.BoolVar(&app.Verbose, "verbose", false, "Enable debug logging")

	// Add subcommands
	root.Subcommands["login"] = newLoginCommand(app)
	root.Subcommands["logout"] = newLogoutCommand(app)
	root.Subcommands["whoami"] = newWhoamiCommand(app)
	root.Subcommands["refresh"] = newRefreshCommand(app)
	root.Subcommands["register"] = newRegisterCommand(app)
	root.Subcommands["users"] = newUsersCommand(app)
	root.Subcommands["serve"] = newServeCommand(app)

	root.Run = func(ctx context.Context, args []string) error {
		if err := root.Flags.Parse(args); err != nil {
			return err
		}
		if app.Verbose {
			app.Log.SetLevel(logrus.DebugLevel)
		}
		return root.dispatch(ctx, app.Out, root.Flags.Args())
	}

	return root
}

// Execute runs the command with args, excluding the program name
func (c *Command) Execute(ctx context.Context, args []string) error {
	if c.Run != nil {
		return c.Run(ctx, args)
	}
	return c.dispatch(ctx, os.Stdout, args)
}

// dispatch hands args to the named subcommand
func (c *Command) dispatch(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage(out)
	}

	subcmd, ok := c.Subcommands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	if subcmd.Run == nil {
		return subcmd.dispatch(ctx, out, args[1:])
	}
	return subcmd.Run(ctx, args[1:])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func newFlagSet(app *App, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.Err)
	return fs
}
