package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/portal/pkg/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	rootCmd := cli.NewRootCommand(app)

	if err := rootCmd.Execute(context.Background(), os.Args[1:]); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return
		case errors.Is(err, cli.ErrRedirected):
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
