package main

import (
	"os"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
