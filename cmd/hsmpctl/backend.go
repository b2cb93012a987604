package main

import (
	"fmt"
	"net"

	"github.com/hsmp-protocol/hsmp-go/pkg/hsmp"
	"github.com/hsmp-protocol/hsmp-go/pkg/wire"
)

// backend abstracts where operations run: in-process against the
// hardware (requires root) or forwarded to hsmpd.
type backend interface {
	Version() (hsmp.FirmwareVersion, int, error)
	SocketPower(socket int) (uint32, error)
	SocketPowerLimit(socket int) (uint32, error)
	SetSocketPowerLimit(socket int, milliwatts uint32) error
	SocketMaxPowerLimit(socket int) (uint32, error)
	SetCPUBoostLimit(cpu int, mhz uint32) error
	SetSocketBoostLimit(socket int, mhz uint32) error
	SetSystemBoostLimit(mhz uint32) error
	CPUBoostLimit(cpu int) (uint32, error)
	ProcHot(socket int) (bool, error)
	SetXGMIWidth(min, max hsmp.XGMIWidth) error
	SetXGMIAuto() error
	SetDFPState(socket int, pstate hsmp.DFPState) error
	FabricClocks(socket int) (fabricMHz, memoryMHz int, err error)
	CoreClockMax(socket int) (uint32, error)
	C0Residency(socket int) (uint32, error)
	SetNBIOPState(bus uint8, pstate hsmp.NBIOPState) error
	NextBus(idx int) (next int, bus uint8, err error)
	DDRBandwidths(socket int) (hsmp.DDRBandwidth, error)
	Close() error
}

// direct runs operations in-process through the client library.
type direct struct {
	client *hsmp.Client
}

func newDirect() backend {
	return &direct{client: hsmp.New()}
}

func (d *direct) Version() (hsmp.FirmwareVersion, int, error) {
	fw, err := d.client.SMUFirmwareVersion()
	if err != nil {
		return hsmp.FirmwareVersion{}, 0, err
	}
	iface, err := d.client.InterfaceVersion()
	return fw, iface, err
}

func (d *direct) SocketPower(socket int) (uint32, error) { return d.client.SocketPower(socket) }
func (d *direct) SocketPowerLimit(socket int) (uint32, error) {
	return d.client.SocketPowerLimit(socket)
}
func (d *direct) SetSocketPowerLimit(socket int, milliwatts uint32) error {
	return d.client.SetSocketPowerLimit(socket, milliwatts)
}
func (d *direct) SocketMaxPowerLimit(socket int) (uint32, error) {
	return d.client.SocketMaxPowerLimit(socket)
}
func (d *direct) SetCPUBoostLimit(cpu int, mhz uint32) error {
	return d.client.SetCPUBoostLimit(cpu, mhz)
}
func (d *direct) SetSocketBoostLimit(socket int, mhz uint32) error {
	return d.client.SetSocketBoostLimit(socket, mhz)
}
func (d *direct) SetSystemBoostLimit(mhz uint32) error {
	return d.client.SetSystemBoostLimit(mhz)
}
func (d *direct) CPUBoostLimit(cpu int) (uint32, error) { return d.client.CPUBoostLimit(cpu) }
func (d *direct) ProcHot(socket int) (bool, error)      { return d.client.ProcHotStatus(socket) }
func (d *direct) SetXGMIWidth(min, max hsmp.XGMIWidth) error {
	return d.client.SetXGMIWidth(min, max)
}
func (d *direct) SetXGMIAuto() error { return d.client.SetXGMIAuto() }
func (d *direct) SetDFPState(socket int, pstate hsmp.DFPState) error {
	return d.client.SetDataFabricPState(socket, pstate)
}
func (d *direct) FabricClocks(socket int) (int, int, error) { return d.client.FabricClocks(socket) }
func (d *direct) CoreClockMax(socket int) (uint32, error) {
	return d.client.CoreClockMaxFrequency(socket)
}
func (d *direct) C0Residency(socket int) (uint32, error) { return d.client.C0Residency(socket) }
func (d *direct) SetNBIOPState(bus uint8, pstate hsmp.NBIOPState) error {
	return d.client.SetNBIOPState(bus, pstate)
}
func (d *direct) NextBus(idx int) (int, uint8, error) { return d.client.NextBus(idx) }
func (d *direct) DDRBandwidths(socket int) (hsmp.DDRBandwidth, error) {
	return d.client.DDRBandwidths(socket)
}
func (d *direct) Close() error { return d.client.Close() }

// remote forwards operations to a running hsmpd over its unix socket.
type remote struct {
	conn net.Conn
}

func newRemote(socket string) (backend, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w", socket, err)
	}
	return &remote{conn: conn}, nil
}

// roundTrip sends one request record and decodes the reply.
func (r *remote) roundTrip(op wire.Op, args ...uint32) (wire.Record, error) {
	req, err := wire.Request(op, args...)
	if err != nil {
		return wire.Record{}, err
	}
	if _, err := req.WriteTo(r.conn); err != nil {
		return wire.Record{}, fmt.Errorf("sending %s: %w", op, err)
	}

	var reply wire.Record
	if _, err := reply.ReadFrom(r.conn); err != nil {
		return wire.Record{}, fmt.Errorf("reading %s reply: %w", op, err)
	}
	if reply.Op != op {
		return wire.Record{}, fmt.Errorf("daemon replied to %s with %s", op, reply.Op)
	}
	if reply.Failed() {
		return wire.Record{}, wire.FromErrno(reply.OSError)
	}
	return reply, nil
}

func (r *remote) query(op wire.Op, args ...uint32) (uint32, error) {
	reply, err := r.roundTrip(op, args...)
	if err != nil {
		return 0, err
	}
	return reply.Response[0], nil
}

func (r *remote) command(op wire.Op, args ...uint32) error {
	_, err := r.roundTrip(op, args...)
	return err
}

func (r *remote) Version() (hsmp.FirmwareVersion, int, error) {
	reply, err := r.roundTrip(wire.OpGetVersion)
	if err != nil {
		return hsmp.FirmwareVersion{}, 0, err
	}
	fw := hsmp.FirmwareVersion{
		Major: uint8(reply.Response[0]),
		Minor: uint8(reply.Response[1]),
		Debug: uint8(reply.Response[2]),
	}
	return fw, int(reply.Response[3]), nil
}

func (r *remote) SocketPower(socket int) (uint32, error) {
	return r.query(wire.OpSocketPower, uint32(socket))
}
func (r *remote) SocketPowerLimit(socket int) (uint32, error) {
	return r.query(wire.OpSocketPowerLimit, uint32(socket))
}
func (r *remote) SetSocketPowerLimit(socket int, milliwatts uint32) error {
	return r.command(wire.OpSetSocketPowerLimit, uint32(socket), milliwatts)
}
func (r *remote) SocketMaxPowerLimit(socket int) (uint32, error) {
	return r.query(wire.OpSocketPowerMax, uint32(socket))
}
func (r *remote) SetCPUBoostLimit(cpu int, mhz uint32) error {
	return r.command(wire.OpSetCPUBoostLimit, uint32(cpu), mhz)
}
func (r *remote) SetSocketBoostLimit(socket int, mhz uint32) error {
	return r.command(wire.OpSetSocketBoostLimit, uint32(socket), mhz)
}
func (r *remote) SetSystemBoostLimit(mhz uint32) error {
	return r.command(wire.OpSetSystemBoostLimit, mhz)
}
func (r *remote) CPUBoostLimit(cpu int) (uint32, error) {
	return r.query(wire.OpCPUBoostLimit, uint32(cpu))
}

func (r *remote) ProcHot(socket int) (bool, error) {
	value, err := r.query(wire.OpProcHot, uint32(socket))
	return value != 0, err
}

func (r *remote) SetXGMIWidth(min, max hsmp.XGMIWidth) error {
	return r.command(wire.OpXGMIWidth, uint32(min), uint32(max))
}
func (r *remote) SetXGMIAuto() error { return r.command(wire.OpXGMIAuto) }
func (r *remote) SetDFPState(socket int, pstate hsmp.DFPState) error {
	return r.command(wire.OpDFPState, uint32(socket), uint32(pstate))
}

func (r *remote) FabricClocks(socket int) (int, int, error) {
	reply, err := r.roundTrip(wire.OpFabricClocks, uint32(socket))
	if err != nil {
		return 0, 0, err
	}
	return int(reply.Response[0]), int(reply.Response[1]), nil
}

func (r *remote) CoreClockMax(socket int) (uint32, error) {
	return r.query(wire.OpCoreClockMax, uint32(socket))
}
func (r *remote) C0Residency(socket int) (uint32, error) {
	return r.query(wire.OpC0Residency, uint32(socket))
}
func (r *remote) SetNBIOPState(bus uint8, pstate hsmp.NBIOPState) error {
	return r.command(wire.OpNBIOPState, uint32(bus), uint32(pstate))
}

func (r *remote) NextBus(idx int) (int, uint8, error) {
	reply, err := r.roundTrip(wire.OpNBIONextBus, uint32(idx))
	if err != nil {
		return 0, 0, err
	}
	return int(reply.Response[0]), uint8(reply.Response[1]), nil
}

func (r *remote) DDRBandwidths(socket int) (hsmp.DDRBandwidth, error) {
	reply, err := r.roundTrip(wire.OpDDRBandwidth, uint32(socket))
	if err != nil {
		return hsmp.DDRBandwidth{}, err
	}
	return hsmp.DDRBandwidth{
		MaxGBps:         reply.Response[0],
		UtilizedGBps:    reply.Response[1],
		UtilizedPercent: reply.Response[2],
	}, nil
}

func (r *remote) Close() error { return r.conn.Close() }
