package main

import (
	"fmt"
	"os"

	"github.com/adamwoolhether/simplesdk/cmd/sdkctl/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := commands.NewRootCommand(version, commit).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
