// Package main is the entrypoint for the semgate CLI, a client for a
// running semgate gateway.
package main

import (
	"os"

	"github.com/semgate-labs/semgate/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute())
}
