package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docweave/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory for the generated config file" type:"path"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	// With an output directory the config lands there as "docweave.yaml".
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, "docweave.yaml")
	}
	out := g.stdout()
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
