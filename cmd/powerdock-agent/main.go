package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/powerdock-io/powerdock/cmd/powerdock-agent/app"
)

func main() {
	if err := app.NewAgentCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
