// Package main is the entry point for the groupsync CLI.
package main

import (
	"os"

	"groupsync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
