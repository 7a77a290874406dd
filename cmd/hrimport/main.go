package main

import (
	"os"

	"github.com/JonMunkholm/hrimport/cmd/hrimport/command"
)

func main() {
	if err := command.NewCommandline().NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
