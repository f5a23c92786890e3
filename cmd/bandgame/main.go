// bandgame runs the wristband sequence game.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/OmniChip/bandgame/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
