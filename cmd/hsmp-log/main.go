// Command hsmp-log is a tool for viewing and analyzing HSMP client log files.
//
// Log files are created by the protocol logging infrastructure when
// running hsmpd with the -protocol-log flag, or by any client built
// with a file logger attached.
//
// Usage:
//
//	hsmp-log <command> [flags] <file.hlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	hsmp-log view hsmpd.hlog
//
//	# View only mailbox exchanges
//	hsmp-log view -layer mailbox hsmpd.hlog
//
//	# View traffic to socket 1 only
//	hsmp-log view -socket 1 hsmpd.hlog
//
//	# Export to JSONL
//	hsmp-log export -format jsonl hsmpd.hlog
//
//	# Filter by message id and save to new file
//	hsmp-log filter -message 0x14 -o ddr.hlog hsmpd.hlog
//
//	# Show statistics
//	hsmp-log stats hsmpd.hlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hsmp-protocol/hsmp-go/cmd/hsmp-log/commands"
)

const usage = `hsmp-log - HSMP Client Log Analyzer

Usage:
  hsmp-log <command> [flags] <file.hlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "hsmp-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on a flag set and
// returns a function that builds FilterOptions after parsing.
func filterFlags(fs *flag.FlagSet) func() commands.FilterOptions {
	client := fs.String("client", "", "Filter by client ID")
	layer := fs.String("layer", "", "Filter by layer (register, mailbox, lifecycle)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (access, exchange, state, error)")
	socket := fs.Int("socket", -1, "Filter by socket index")
	message := fs.String("message", "", "Filter by mailbox message id (decimal or 0x hex)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	return func() commands.FilterOptions {
		return commands.FilterOptions{
			ClientID:  *client,
			Layer:     *layer,
			Direction: *direction,
			Category:  *category,
			Socket:    *socket,
			Message:   *message,
			TimeStart: *timeStart,
			TimeEnd:   *timeEnd,
		}
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `hsmp-log view - View log file in human-readable format

Usage:
  hsmp-log view [flags] <file.hlog>

Flags:
`)
		fs.PrintDefaults()
	}

	opts := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunView(fs.Arg(0), opts(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `hsmp-log export - Export log file to JSON or CSV format

Usage:
  hsmp-log export [flags] <file.hlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunExport(fs.Arg(0), *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `hsmp-log filter - Filter log file and write to new file

Usage:
  hsmp-log filter [flags] <file.hlog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunFilter(fs.Arg(0), *output, opts()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `hsmp-log stats - Show statistics about the log file

Usage:
  hsmp-log stats <file.hlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
