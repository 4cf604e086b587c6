package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/cmd/docweave/commands"
	"git.home.luguber.info/inful/docweave/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Stdout: os.Stdout, Stderr: os.Stderr}
	ctx := kong.Parse(&cli,
		kong.Name("docweave"),
		kong.Description("Builds cross-referenced documentation sets from Markdown, API pages and overwrite fragments."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	err := ctx.Run(global, &cli)
	os.Exit(commands.ExitCode(err, cli.Verbose, os.Stderr))
}
