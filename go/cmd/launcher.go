package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/bootcorn/go/models"
)

type command struct {
	name, desc string
	main       func(args []string)
}

var commands = make(map[string]*command)

// Register adds a subcommand. main gets os.Args with the command name
// joined onto argv[0], so flag usage shows "bootcorn boot".
func Register(name, desc string, main func(args []string)) {
	commands[name] = &command{name, desc, main}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, commands[name].desc}
	}
	fmt.Fprintln(os.Stderr, "Commands:")
	models.PrintTable(os.Stderr, rows)
	fmt.Fprintf(os.Stderr, "\nExample: %s boot -v ./volume\n\n", os.Args[0])
}

func Main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Command '%s' not found.\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	args := append([]string{strings.Join(os.Args[:2], " ")}, os.Args[2:]...)
	cmd.main(args)
}
