package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/portal/pkg/async"
	"github.com/platinummonkey/portal/pkg/identity"
)

const deleteWorkers = 4

func newUsersCommand(app *App) *Command {
	cmd := &Command{
		Name:        "users",
		Description: "Administer accounts (requires ADMIN)",
		Subcommands: make(map[string]*Command),
	}

	cmd.Subcommands["list"] = newUsersListCommand(app)
	cmd.Subcommands["get"] = newUsersGetCommand(app)
	cmd.Subcommands["update"] = newUsersUpdateCommand(app)
	cmd.Subcommands["delete"] = newUsersDeleteCommand(app)

	return cmd
}

// withAdmin runs fn once the session holds ADMIN
func (a *App) withAdmin(ctx context.Context, fn func(ctx context.Context, env *environment) error) error {
	return a.withSession(ctx, func(ctx context.Context, env *environment) error {
		if _, err := a.require(env, "ADMIN"); err != nil {
			return err
		}
		return fn(ctx, env)
	})
}

func newUsersListCommand(app *App) *Command {
	cmd := &Command{
		Name:        "list",
		Description: "List accounts",
		Flags:       newFlagSet(app, "users list"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return app.withAdmin(ctx, func(ctx context.Context, env *environment) error {
			list, err := env.directory().List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list users: %s", identity.Display(err))
			}

			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES")
			for _, u := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, strings.Join(u.Roles, ","))
			}
			return tw.Flush()
		})
	}

	return cmd
}

func newUsersGetCommand(app *App) *Command {
	cmd := &Command{
		Name:        "get",
		Description: "Show one account",
		Flags:       newFlagSet(app, "users get"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		id, err := parseWithID(cmd.Flags, args)
		if err != nil {
			return err
		}
		return app.withAdmin(ctx, func(ctx context.Context, env *environment) error {
			user, err := env.directory().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get user %d: %s", id, identity.Display(err))
			}
			printIdentity(app.Out, user)
			return nil
		})
	}

	return cmd
}

func newUsersUpdateCommand(app *App) *Command {
	cmd := &Command{
		Name:        "update",
		Description: "Change account fields",
		Flags:       newFlagSet(app, "users update"),
	}

	username := cmd.Flags.String("username", "", "New username")
	email := cmd.Flags.String("email", "", "New email address")
	password := cmd.Flags.String("password", "", "New password")
	roles := cmd.Flags.String("roles", "", "Comma-separated roles, replacing the current set")

	cmd.Run = func(ctx context.Context, args []string) error {
		id, err := parseWithID(cmd.Flags, args)
		if err != nil {
			return err
		}

		var update identity.UserUpdate
		cmd.Flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "username":
				update.Username = username
			case "email":
				update.Email = email
			case "password":
				update.Password = password
			case "roles":
				update.Roles = splitRoles(*roles)
			}
		})

		return app.withAdmin(ctx, func(ctx context.Context, env *environment) error {
			user, err := env.directory().Update(ctx, id, update)
			if err != nil {
				return fmt.Errorf("failed to update user %d: %s", id, identity.Display(err))
			}
			printIdentity(app.Out, user)
			return nil
		})
	}

	return cmd
}

func newUsersDeleteCommand(app *App) *Command {
	cmd := &Command{
		Name:        "delete",
		Description: "Delete one or more accounts",
		Flags:       newFlagSet(app, "users delete"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("at least one user id is required")
		}
		ids := make([]int64, 0, cmd.Flags.NArg())
		for _, arg := range cmd.Flags.Args() {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id: %s", arg)
			}
			ids = append(ids, id)
		}

		return app.withAdmin(ctx, func(ctx context.Context, env *environment) error {
			directory := env.directory()
			errs := async.Batch(ctx, ids, deleteWorkers, env.cfg.Identity.Timeout, directory.Delete)

			var failed []error
			for i, id := range ids {
				if errs != nil && errs[i] != nil {
					failed = append(failed, fmt.Errorf("user %d: %s", id, identity.Display(errs[i])))
					continue
				}
				fmt.Fprintf(app.Out, "Deleted user %d\n", id)
			}
			if len(failed) > 0 {
				return fmt.Errorf("failed to delete %d user(s): %w", len(failed), errors.Join(failed...))
			}
			return nil
		})
	}

	return cmd
}

// parseWithID accepts the account id before or after the flags
func parseWithID(fs *flag.FlagSet, args []string) (int64, error) {
	var positional string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if positional == "" && fs.NArg() > 0 {
		positional = fs.Arg(0)
	}
	if positional == "" {
		return 0, fmt.Errorf("user id is required")
	}

	id, err := strconv.ParseInt(positional, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %s", positional)
	}
	return id, nil
}

func splitRoles(value string) []string {
	roles := []string{}
	for _, r := range strings.Split(value, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
