package main

import (
	"fmt"
	"os"
)

type ExportCmd struct {
	Output string `help:"Write to this file instead of stdout." short:"o" type:"path"`
}

func (c *ExportCmd) Run(env *Environment) error {
	dataset, err := env.Admin.Export(env.Context, env.Session)
	if err != nil {
		return err
	}

	if c.Output == "" {
		return writeJSON(os.Stdout, dataset)
	}

	file, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Output, err)
	}
	defer file.Close()

	if err := writeJSON(file, dataset); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported board to %s\n", c.Output)
	return nil
}

type ImportCmd struct {
	File    string `arg:"" help:"Import document." type:"existingfile"`
	Confirm bool   `help:"Confirm overwriting the collections in the document."`
}

func (c *ImportCmd) Run(env *Environment) error {
	body, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}

	response, err := env.Admin.Import(env.Context, env.Session, body, c.Confirm)
	if response != nil {
		if writeErr := writeJSON(os.Stdout, response); writeErr != nil {
			return writeErr
		}
	}
	return err
}

type ResetCmd struct {
	Confirm bool `help:"Confirm running the daily reset now."`
}

func (c *ResetCmd) Run(env *Environment) error {
	report, err := env.Admin.Reset(env.Context, env.Session, c.Confirm)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, report)
}

type UndoResetCmd struct {
	Confirm bool `help:"Confirm restoring the board from the newest archive."`
}

func (c *UndoResetCmd) Run(env *Environment) error {
	report, err := env.Admin.UndoReset(env.Context, env.Session, c.Confirm)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, report)
}

type StatusCmd struct{}

func (c *StatusCmd) Run(env *Environment) error {
	env.Services.Health.Check(env.Context)
	return writeJSON(os.Stdout, env.Services.StorageInfo.Retry(env.Context))
}
