// Package cmd implements the volio CLI's subcommands, dispatched by name
// the way the teacher's cmd/grail-file/cmd package does (cmd.go's
// commands table + Run).
package cmd

import (
	"fmt"
	"io"
	"os"
)

var commands = []struct {
	name     string
	callback func(out io.Writer, args []string) error
	help     string
}{
	{"create", Create, "Create packs one or more files into a new archive at the given basepath."},
	{"list", List, "List scans an archive's volumes and prints its record sequence."},
	{"extract", Extract, "Extract reads an archive back out into a destination directory."},
}

// PrintHelp writes the subcommand table to stderr.
func PrintHelp() {
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.help)
	}
}

// Run dispatches args[0] to the matching subcommand.
func Run(args []string) error {
	if len(args) == 0 {
		PrintHelp()
		return fmt.Errorf("cmd: no subcommand given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.callback(os.Stdout, args[1:])
		}
	}
	PrintHelp()
	return fmt.Errorf("cmd: unknown subcommand %q", args[0])
}
