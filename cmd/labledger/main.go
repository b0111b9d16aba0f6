// Command labledger manages staked reservations of shared lab resources.
package main

import (
	"os"

	"github.com/mesh-intelligence/labledger/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
