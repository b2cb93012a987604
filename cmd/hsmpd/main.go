// Command hsmpd is the privileged daemon fronting the management port.
//
// Only root can talk to the mailbox hardware. hsmpd runs as root,
// owns the client library instance, and serves operations to
// unprivileged hsmpctl invocations over a unix socket using the
// fixed-record protocol from pkg/wire.
//
// Usage:
//
//	hsmpd [flags]
//
// Flags:
//
//	-socket string        Unix socket path (default "/run/hsmpd.sock")
//	-protocol-log string  Write protocol events to a .hlog file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start the daemon with register-level capture
//	hsmpd -protocol-log /var/log/hsmpd.hlog -log-level debug
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/hsmp-protocol/hsmp-go/pkg/hsmp"
	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/wire"
)

func main() {
	socket := flag.String("socket", "/run/hsmpd.sock", "Unix socket path")
	protocolLog := flag.String("protocol-log", "", "Write protocol events to a .hlog file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if os.Geteuid() != 0 {
		logger.Error("hsmpd requires root privileges")
		os.Exit(1)
	}

	var opts []hsmp.Option
	if *protocolLog != "" {
		fl, err := log.NewFileLogger(*protocolLog)
		if err != nil {
			logger.Error("opening protocol log", "error", err)
			os.Exit(1)
		}
		defer fl.Close()
		opts = append(opts, hsmp.WithLogger(fl))
	}
	client := hsmp.New(opts...)
	defer client.Close()

	if err := client.Initialize(); err != nil {
		logger.Error("platform probe failed", "error", err, "detail", hsmp.DescribeError(err))
		os.Exit(1)
	}
	fw, _ := client.SMUFirmwareVersion()
	iface, _ := client.InterfaceVersion()
	logger.Info("platform probed", "firmware", fw.String(), "interface_version", iface)

	_ = os.Remove(*socket)
	listener, err := net.Listen("unix", *socket)
	if err != nil {
		logger.Error("listening", "socket", *socket, "error", err)
		os.Exit(1)
	}
	defer os.Remove(*socket)

	// Unprivileged clients must be able to connect.
	if err := os.Chmod(*socket, 0o666); err != nil {
		logger.Error("setting socket permissions", "error", err)
		os.Exit(1)
	}

	d := &daemon{client: client, logger: logger}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			logger.Info("shutting down", "signal", sig.String())
		case <-d.exit():
			logger.Info("shutting down", "reason", "exit request")
		}
		listener.Close()
	}()

	logger.Info("listening", "socket", *socket)
	for {
		conn, err := listener.Accept()
		if err != nil {
			break
		}
		d.wg.Add(1)
		go d.serve(conn)
	}
	d.wg.Wait()
}

// daemon serves the record protocol on accepted connections.
type daemon struct {
	client *hsmp.Client
	logger *slog.Logger
	wg     sync.WaitGroup

	exitOnce sync.Once
	exitCh   chan struct{}
	exitMu   sync.Mutex
}

func (d *daemon) exit() chan struct{} {
	d.exitMu.Lock()
	defer d.exitMu.Unlock()
	if d.exitCh == nil {
		d.exitCh = make(chan struct{})
	}
	return d.exitCh
}

func (d *daemon) requestExit() {
	ch := d.exit()
	d.exitOnce.Do(func() { close(ch) })
}

// serve handles one connection: a sequence of request records, one
// reply each.
func (d *daemon) serve(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	session := uuid.NewString()[:8]
	logger := d.logger.With("session", session)
	logger.Debug("session opened")

	for {
		var req wire.Record
		if _, err := req.ReadFrom(conn); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("reading request", "error", err)
			}
			logger.Debug("session closed")
			return
		}

		reply := d.dispatch(logger, &req)
		if _, err := reply.WriteTo(conn); err != nil {
			logger.Warn("writing reply", "error", err)
			return
		}

		if req.Op == wire.OpDaemonExit {
			d.requestExit()
			return
		}
	}
}

// dispatch maps one request record to a client library call.
func (d *daemon) dispatch(logger *slog.Logger, req *wire.Record) wire.Record {
	logger.Debug("request", "op", req.Op.String(), "args", req.Args[:req.ArgCount])

	reply, err := d.call(req)
	if err != nil {
		logger.Info("operation failed", "op", req.Op.String(), "detail", hsmp.DescribeError(err))
		return wire.Fail(req.Op, wire.Errno(err))
	}
	return reply
}

func (d *daemon) call(req *wire.Record) (wire.Record, error) {
	arg := func(i int) uint32 { return req.Args[i] }
	socket := func() int { return int(int32(arg(0))) }

	switch req.Op {
	case wire.OpGetVersion:
		fw, err := d.client.SMUFirmwareVersion()
		if err != nil {
			return wire.Record{}, err
		}
		iface, err := d.client.InterfaceVersion()
		if err != nil {
			return wire.Record{}, err
		}
		return wire.Reply(req.Op,
			uint32(fw.Major), uint32(fw.Minor), uint32(fw.Debug), uint32(iface)), nil

	case wire.OpSocketPower:
		power, err := d.client.SocketPower(socket())
		return wire.Reply(req.Op, power), err

	case wire.OpSocketPowerLimit:
		limit, err := d.client.SocketPowerLimit(socket())
		return wire.Reply(req.Op, limit), err

	case wire.OpSetSocketPowerLimit:
		return wire.Reply(req.Op), d.client.SetSocketPowerLimit(socket(), arg(1))

	case wire.OpSocketPowerMax:
		max, err := d.client.SocketMaxPowerLimit(socket())
		return wire.Reply(req.Op, max), err

	case wire.OpSetCPUBoostLimit:
		return wire.Reply(req.Op), d.client.SetCPUBoostLimit(int(int32(arg(0))), arg(1))

	case wire.OpSetSocketBoostLimit:
		return wire.Reply(req.Op), d.client.SetSocketBoostLimit(socket(), arg(1))

	case wire.OpSetSystemBoostLimit:
		return wire.Reply(req.Op), d.client.SetSystemBoostLimit(arg(0))

	case wire.OpCPUBoostLimit:
		limit, err := d.client.CPUBoostLimit(int(int32(arg(0))))
		return wire.Reply(req.Op, limit), err

	case wire.OpProcHot:
		hot, err := d.client.ProcHotStatus(socket())
		var value uint32
		if hot {
			value = 1
		}
		return wire.Reply(req.Op, value), err

	case wire.OpXGMIWidth:
		return wire.Reply(req.Op), d.client.SetXGMIWidth(hsmp.XGMIWidth(arg(0)), hsmp.XGMIWidth(arg(1)))

	case wire.OpXGMIAuto:
		return wire.Reply(req.Op), d.client.SetXGMIAuto()

	case wire.OpDFPState:
		return wire.Reply(req.Op), d.client.SetDataFabricPState(socket(), hsmp.DFPState(arg(1)))

	case wire.OpFabricClocks:
		fabric, memory, err := d.client.FabricClocks(socket())
		return wire.Reply(req.Op, uint32(fabric), uint32(memory)), err

	case wire.OpCoreClockMax:
		limit, err := d.client.CoreClockMaxFrequency(socket())
		return wire.Reply(req.Op, limit), err

	case wire.OpC0Residency:
		residency, err := d.client.C0Residency(socket())
		return wire.Reply(req.Op, residency), err

	case wire.OpNBIOPState:
		return wire.Reply(req.Op), d.client.SetNBIOPState(uint8(arg(0)), hsmp.NBIOPState(arg(1)))

	case wire.OpNBIONextBus:
		next, bus, err := d.client.NextBus(int(int32(arg(0))))
		return wire.Reply(req.Op, uint32(next), uint32(bus)), err

	case wire.OpDDRBandwidth:
		bw, err := d.client.DDRBandwidths(socket())
		return wire.Reply(req.Op, bw.MaxGBps, bw.UtilizedGBps, bw.UtilizedPercent), err

	case wire.OpDaemonPing, wire.OpDaemonExit:
		return wire.Reply(req.Op), nil

	default:
		return wire.Record{}, hsmp.ErrInvalidArgument
	}
}
