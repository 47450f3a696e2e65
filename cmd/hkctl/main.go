package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag

	Export    ExportCmd    `cmd:"" help:"Write the board as a JSON document."`
	Import    ImportCmd    `cmd:"" help:"Overwrite collections from a JSON document."`
	Reset     ResetCmd     `cmd:"" help:"Archive yesterday and start today's board."`
	UndoReset UndoResetCmd `cmd:"" name:"undo-reset" help:"Restore the board from the newest archive."`
	Status    StatusCmd    `cmd:"" help:"Show backend reachability, local usage and sync state." default:"1"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("hkctl"),
		kong.Description("Housekeeping board maintenance"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	env, err := newEnvironment(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = ctx.Run(env)
	if closeErr := env.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
