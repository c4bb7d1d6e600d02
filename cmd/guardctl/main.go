// Guardctl is the operator CLI for gatewarden: account management,
// permission grants, and token minting.
package main

import (
	"os"

	"github.com/gatewarden/gatewarden/cmd/guardctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
