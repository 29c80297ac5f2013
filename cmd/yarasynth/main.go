package main

import (
	"os"

	"yarasynth/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
