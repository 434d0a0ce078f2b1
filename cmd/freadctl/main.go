// Command freadctl is the maintenance CLI for fread.
//
// Usage:
//
//	freadctl                Show help
//	freadctl seed           Fetch the configured RSS feeds into the local database
//	freadctl pages          Walk a stream's cursor chain and print page boundaries
//	freadctl stats          Item counts of the local database
//	freadctl events         JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `freadctl: fread maintenance CLI

Usage:
  freadctl <command> [flags]

Commands:
  seed        Fetch the configured RSS feeds into the local database
  pages       Walk a stream's cursor chain and print page boundaries
  stats       Item counts of the local database
  events      JSONL event log viewer

Configuration is read from ~/.fread/config.json; the usual environment
overrides (FREAD_SOURCE, INOREADER_*, MINIFLUX_*) apply.

Run 'freadctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "seed":
		runSeed()
	case "pages":
		runPages()
	case "stats":
		runStats()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "freadctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
