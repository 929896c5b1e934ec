// Package main is the entry point for the Atmos processor.
package main

import (
	"os"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
