package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newCLIApp()
	app.Reader = os.Stdin
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code := 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) && exitErr.ExitCode() != 0 {
			code = exitErr.ExitCode()
		}
		os.Exit(code)
	}
}
