package command

import (
	"strings"
)

func NewHelpCommand() *Command {
	return &Command{
		Command:      "help",
		ShortCommand: "h",
		Usage: `
Usage: help [COMMAND]

This command shows help information for a specific command.

EXAMPLES:
		help deposit

		`,
		Help:    `Show help information for a specific command`,
		Process: Help_Process,
	}
}

func Help_Process(cmd *Command, input string) {
	tokens := strings.Fields(input)
	if len(tokens) < 2 {
		Printf("\nAvailable commands:\n\n")
		for _, sc := range Commands {
			short := ""
			if sc.ShortCommand != "" {
				short = "(" + sc.ShortCommand + ")"
			}
			Printf("%-13s - %s\n", sc.Command+short, sc.Help)
		}

		Printf("\n")
		return
	}
	command := tokens[1]

	for _, sc := range Commands {
		if sc.Command == command || (sc.ShortCommand != "" && sc.ShortCommand == command) {
			Printf("%s\n", sc.Usage)
			return
		}
	}

	PrintErrorf("Unknown command: %s\n", command)
}
