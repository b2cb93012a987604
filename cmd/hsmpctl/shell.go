package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hsmp-protocol/hsmp-go/pkg/hsmp"
)

// runShell starts the interactive command loop. Every top-level
// command is available by the same name, plus help and exit.
func runShell(b backend) error {
	var items []readline.PrefixCompleterInterface
	for _, name := range commandNames() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hsmp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), "Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// EOF
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			printShellHelp(rl)

		case "exit", "quit", "q":
			return nil

		default:
			c, ok := commands[cmd]
			if !ok {
				fmt.Fprintf(rl.Stdout(), "Unknown command: %s\n", cmd)
				continue
			}
			if err := c.run(b, args); err != nil {
				if errors.Is(err, errUsage) {
					fmt.Fprintf(rl.Stdout(), "Usage: %s\n", c.usage)
					continue
				}
				fmt.Fprintf(rl.Stdout(), "Error: %s\n", hsmp.DescribeError(err))
			}
		}
	}
}

func printShellHelp(rl *readline.Instance) {
	fmt.Fprintln(rl.Stdout(), "Commands:")
	for _, name := range commandNames() {
		fmt.Fprintf(rl.Stdout(), "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(rl.Stdout(), "  help")
	fmt.Fprintln(rl.Stdout(), "  exit")
}
