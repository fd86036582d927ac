package main

import (
	"os"

	"github.com/apim-tools/apimctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ReportError(os.Stderr, err))
	}
}
