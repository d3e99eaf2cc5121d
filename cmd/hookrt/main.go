package main

import (
	"os"

	"github.com/platinummonkey/hookrt/pkg/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
