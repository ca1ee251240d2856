package main

import (
	"duchain/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
