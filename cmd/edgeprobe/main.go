package main

import (
	"fmt"
	"os"

	"github.com/leptonai/edgeprobe/cmd/edgeprobe/command"
	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
)

func main() {
	app := command.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", cmdcommon.WarningSign, err)
		os.Exit(1)
	}
}
