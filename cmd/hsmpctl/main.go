// Command hsmpctl reads and controls the host system management port.
//
// By default hsmpctl talks to the hardware directly, which requires
// root. With -daemon it forwards operations to a running hsmpd
// instance instead, so unprivileged users can be granted access
// through the daemon's socket.
//
// Usage:
//
//	hsmpctl [flags] <command> [args]
//
// Flags:
//
//	-daemon string  Forward operations to the hsmpd socket at this path
//
// Commands:
//
//	version                          Show firmware and interface versions
//	power <socket>                   Show socket power draw
//	power-limit <socket> [mw]        Show or set the socket power cap
//	power-max <socket>               Show the largest accepted power cap
//	boost <cpu> [mhz]                Show or set a core boost limit
//	boost-socket <socket> <mhz>      Set every core boost limit in a socket
//	boost-all <mhz>                  Set every core boost limit in the system
//	prochot <socket>                 Show PROCHOT assertion state
//	xgmi <min> <max> | xgmi auto     Bound or restore the link width range
//	df-pstate <socket> <0-3|auto>    Select the data fabric P-state
//	clocks <socket>                  Show fabric and memory clocks
//	cclk <socket>                    Show the core clock frequency limit
//	c0 <socket>                      Show average C0 residency
//	nbio-pstate <bus> <auto|p0>      Set a north-bridge tile P-state
//	buses                            List access point bus bases
//	ddr <socket>                     Show memory bandwidth telemetry
//	shell                            Interactive command shell
//
// Examples:
//
//	# Direct access (as root)
//	hsmpctl power 0
//
//	# Through the daemon
//	hsmpctl -daemon /run/hsmpd.sock ddr 1
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hsmp-protocol/hsmp-go/pkg/hsmp"
)

const usage = `hsmpctl - host system management port control

Usage:
  hsmpctl [flags] <command> [args]

Flags:
  -daemon string  Forward operations to the hsmpd socket at this path

Commands:
  version                          Show firmware and interface versions
  power <socket>                   Show socket power draw
  power-limit <socket> [mw]        Show or set the socket power cap
  power-max <socket>               Show the largest accepted power cap
  boost <cpu> [mhz]                Show or set a core boost limit
  boost-socket <socket> <mhz>      Set every core boost limit in a socket
  boost-all <mhz>                  Set every core boost limit in the system
  prochot <socket>                 Show PROCHOT assertion state
  xgmi <min> <max> | xgmi auto     Bound or restore the link width range
  df-pstate <socket> <0-3|auto>    Select the data fabric P-state
  clocks <socket>                  Show fabric and memory clocks
  cclk <socket>                    Show the core clock frequency limit
  c0 <socket>                      Show average C0 residency
  nbio-pstate <bus> <auto|p0>      Set a north-bridge tile P-state
  buses                            List access point bus bases
  ddr <socket>                     Show memory bandwidth telemetry
  shell                            Interactive command shell
`

func main() {
	daemonSocket := flag.String("daemon", "", "Forward operations to the hsmpd socket at this path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var b backend
	var err error
	if *daemonSocket != "" {
		b, err = newRemote(*daemonSocket)
	} else {
		b = newDirect()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	name := args[0]
	if name == "shell" {
		if err := runShell(b); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runCommand(b, name, args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", hsmp.DescribeError(err))
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("bad usage")

// runCommand executes one named command against the backend.
func runCommand(b backend, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	err := cmd.run(b, args)
	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "Usage: hsmpctl %s\n", cmd.usage)
	}
	return err
}

type command struct {
	usage string
	run   func(b backend, args []string) error
}

var commands = map[string]command{
	"version":      {"version", cmdVersion},
	"power":        {"power <socket>", cmdPower},
	"power-limit":  {"power-limit <socket> [milliwatts]", cmdPowerLimit},
	"power-max":    {"power-max <socket>", cmdPowerMax},
	"boost":        {"boost <cpu> [mhz]", cmdBoost},
	"boost-socket": {"boost-socket <socket> <mhz>", cmdBoostSocket},
	"boost-all":    {"boost-all <mhz>", cmdBoostAll},
	"prochot":      {"prochot <socket>", cmdProcHot},
	"xgmi":         {"xgmi <min> <max> | xgmi auto", cmdXGMI},
	"df-pstate":    {"df-pstate <socket> <0-3|auto>", cmdDFPState},
	"clocks":       {"clocks <socket>", cmdClocks},
	"cclk":         {"cclk <socket>", cmdCCLK},
	"c0":           {"c0 <socket>", cmdC0},
	"nbio-pstate":  {"nbio-pstate <bus> <auto|p0>", cmdNBIOPState},
	"buses":        {"buses", cmdBuses},
	"ddr":          {"ddr <socket>", cmdDDR},
}

// commandNames returns the command names sorted, for shell completion
// and help.
func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, errUsage)
	}
	return v, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an unsigned number: %w", s, errUsage)
	}
	return uint32(v), nil
}

func parseWidth(s string) (hsmp.XGMIWidth, error) {
	switch strings.ToLower(s) {
	case "x2", "2":
		return hsmp.XGMIWidthX2, nil
	case "x8", "8":
		return hsmp.XGMIWidthX8, nil
	case "x16", "16":
		return hsmp.XGMIWidthX16, nil
	default:
		return 0, fmt.Errorf("%q is not a link width (x2, x8, x16): %w", s, errUsage)
	}
}

func cmdVersion(b backend, args []string) error {
	fw, iface, err := b.Version()
	if err != nil {
		return err
	}
	fmt.Printf("SMU firmware version: %s\n", fw)
	fmt.Printf("Interface version: %d\n", iface)
	return nil
}

func cmdPower(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	power, err := b.SocketPower(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d power: %d mW\n", socket, power)
	return nil
}

func cmdPowerLimit(b backend, args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		limit, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		return b.SetSocketPowerLimit(socket, limit)
	}

	limit, err := b.SocketPowerLimit(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d power limit: %d mW\n", socket, limit)
	return nil
}

func cmdPowerMax(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	max, err := b.SocketMaxPowerLimit(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d maximum power limit: %d mW\n", socket, max)
	return nil
}

func cmdBoost(b backend, args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return errUsage
	}
	cpu, err := parseInt(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		limit, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		return b.SetCPUBoostLimit(cpu, limit)
	}

	limit, err := b.CPUBoostLimit(cpu)
	if err != nil {
		return err
	}
	fmt.Printf("CPU %d boost limit: %d MHz\n", cpu, limit)
	return nil
}

func cmdBoostSocket(b backend, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	limit, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	return b.SetSocketBoostLimit(socket, limit)
}

func cmdBoostAll(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	limit, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	return b.SetSystemBoostLimit(limit)
}

func cmdProcHot(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	hot, err := b.ProcHot(socket)
	if err != nil {
		return err
	}
	state := "not asserted"
	if hot {
		state = "asserted"
	}
	fmt.Printf("Socket %d PROCHOT: %s\n", socket, state)
	return nil
}

func cmdXGMI(b backend, args []string) error {
	if len(args) == 1 && strings.EqualFold(args[0], "auto") {
		return b.SetXGMIAuto()
	}
	if len(args) != 2 {
		return errUsage
	}
	min, err := parseWidth(args[0])
	if err != nil {
		return err
	}
	max, err := parseWidth(args[1])
	if err != nil {
		return err
	}
	return b.SetXGMIWidth(min, max)
}

func cmdDFPState(b backend, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}

	var pstate hsmp.DFPState
	if strings.EqualFold(args[1], "auto") {
		pstate = hsmp.DFPStateAuto
	} else {
		v, err := parseInt(args[1])
		if err != nil {
			return err
		}
		pstate = hsmp.DFPState(v)
	}
	return b.SetDFPState(socket, pstate)
}

func cmdClocks(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	fabric, memory, err := b.FabricClocks(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d data fabric clock: %d MHz\n", socket, fabric)
	fmt.Printf("Socket %d memory clock: %d MHz\n", socket, memory)
	return nil
}

func cmdCCLK(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	limit, err := b.CoreClockMax(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d core clock limit: %d MHz\n", socket, limit)
	return nil
}

func cmdC0(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	residency, err := b.C0Residency(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d C0 residency: %d%%\n", socket, residency)
	return nil
}

func cmdNBIOPState(b backend, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	bus, err := parseUint32(args[0])
	if err != nil || bus > 0xFF {
		return fmt.Errorf("%q is not a bus number: %w", args[0], errUsage)
	}

	var pstate hsmp.NBIOPState
	switch strings.ToLower(args[1]) {
	case "auto":
		pstate = hsmp.NBIOPStateAuto
	case "p0":
		pstate = hsmp.NBIOPStateP0
	default:
		return fmt.Errorf("%q is not a tile P-state (auto, p0): %w", args[1], errUsage)
	}
	return b.SetNBIOPState(uint8(bus), pstate)
}

func cmdBuses(b backend, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	idx := 0
	for {
		next, bus, err := b.NextBus(idx)
		if errors.Is(err, hsmp.ErrInvalidArgument) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Access point %d: bus base 0x%02X\n", idx, bus)
		idx = next
	}
}

func cmdDDR(b backend, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	socket, err := parseInt(args[0])
	if err != nil {
		return err
	}
	bw, err := b.DDRBandwidths(socket)
	if err != nil {
		return err
	}
	fmt.Printf("Socket %d DDR maximum bandwidth: %d GB/s\n", socket, bw.MaxGBps)
	fmt.Printf("Socket %d DDR utilized bandwidth: %d GB/s\n", socket, bw.UtilizedGBps)
	fmt.Printf("Socket %d DDR utilization: %d%%\n", socket, bw.UtilizedPercent)
	return nil
}
