package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/portal/pkg/identity"
)

func newLoginCommand(app *App) *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Sign in and store the session tokens",
		Flags:       newFlagSet(app, "login"),
	}

	username := cmd.Flags.String("username", "", "Account username")
	password := cmd.Flags.String("password", "", "Account password (default $PORTAL_PASSWORD)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *password == "" {
			*password = os.Getenv("PORTAL_PASSWORD")
		}
		if *username == "" || *password == "" {
			return fmt.Errorf("username and password are required")
		}

		return app.withSession(ctx, func(ctx context.Context, env *environment) error {
			resp, err := env.mgr.Login(ctx, *username, *password)
			if err != nil {
				return fmt.Errorf("login failed: %s", identity.Display(err))
			}
			app.Log.WithFields(logrus.Fields{
				"username": resp.Username,
				"roles":    strings.Join(resp.Roles, ","),
			}).Info("Logged in")
			return nil
		})
	}

	return cmd
}

func newLogoutCommand(app *App) *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "End the session and forget the stored tokens",
		Flags:       newFlagSet(app, "logout"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return app.withSession(ctx, func(ctx context.Context, env *environment) error {
			env.mgr.Logout(ctx)
			app.Log.Info("Logged out")
			return nil
		})
	}

	return cmd
}

func newWhoamiCommand(app *App) *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the signed-in identity",
		Flags:       newFlagSet(app, "whoami"),
	}

	asJSON := cmd.Flags.Bool("json", false, "Print the identity as JSON")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return app.withSession(ctx, func(ctx context.Context, env *environment) error {
			ident, err := app.require(env)
			if err != nil {
				return err
			}
			if *asJSON {
				enc := json.NewEncoder(app.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(ident)
			}
			printIdentity(app.Out, ident)
			return nil
		})
	}

	return cmd
}

func newRefreshCommand(app *App) *Command {
	cmd := &Command{
		Name:        "refresh",
		Description: "Exchange the refresh token for a new access token",
		Flags:       newFlagSet(app, "refresh"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return app.withSession(ctx, func(ctx context.Context, env *environment) error {
			resp, err := env.mgr.RefreshAccessToken(ctx)
			if err != nil {
				return fmt.Errorf("refresh failed: %s", identity.Display(err))
			}
			app.Log.WithField("rotated", resp.RefreshToken != "").Info("Access token refreshed")
			return nil
		})
	}

	return cmd
}

// fieldsFlag collects repeated key=value flags
type fieldsFlag map[string]string

func (f fieldsFlag) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (f fieldsFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	f[key] = val
	return nil
}

func newRegisterCommand(app *App) *Command {
	cmd := &Command{
		Name:        "register",
		Description: "Create an account",
		Flags:       newFlagSet(app, "register"),
	}

	fields := fieldsFlag{}
	cmd.Flags.Var(fields, "field", "Account field as key=value (repeatable)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("at least one --field is required")
		}

		body := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			body[k] = v
		}

		return app.withSession(ctx, func(ctx context.Context, env *environment) error {
			created, err := env.mgr.Register(ctx, body)
			if err != nil {
				return fmt.Errorf("registration failed: %s", identity.Display(err))
			}
			enc := json.NewEncoder(app.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(created)
		})
	}

	return cmd
}
