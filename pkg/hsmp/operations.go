package hsmp

import (
	"fmt"

	"github.com/hsmp-protocol/hsmp-go/pkg/mailbox"
)

// XGMIWidth is an inter-socket link width setting.
type XGMIWidth uint8

const (
	XGMIWidthX2 XGMIWidth = iota
	XGMIWidthX8
	XGMIWidthX16
)

// String returns the link width name.
func (w XGMIWidth) String() string {
	switch w {
	case XGMIWidthX2:
		return "x2"
	case XGMIWidthX8:
		return "x8"
	case XGMIWidthX16:
		return "x16"
	default:
		return fmt.Sprintf("XGMIWidth(%d)", uint8(w))
	}
}

// DFPState selects a data fabric P-state. DFPState0 is the highest
// fabric frequency, DFPState3 the lowest; DFPStateAuto returns the
// fabric to utilization-based selection.
type DFPState uint8

const (
	DFPState0 DFPState = iota
	DFPState1
	DFPState2
	DFPState3
	DFPStateAuto
)

// NBIOPState selects a north-bridge tile P-state.
type NBIOPState uint8

const (
	// NBIOPStateAuto enables dynamic tile P-state selection.
	NBIOPStateAuto NBIOPState = iota

	// NBIOPStateP0 pins the tile to its highest P-state, needed for
	// latency-sensitive peripherals behind it.
	NBIOPStateP0
)

// DDRBandwidth is one socket's memory bandwidth telemetry.
type DDRBandwidth struct {
	// MaxGBps is the theoretical maximum in GB/s.
	MaxGBps uint32

	// UtilizedGBps is the current utilization in GB/s.
	UtilizedGBps uint32

	// UtilizedPercent is the utilization as a percentage of maximum.
	UtilizedPercent uint32
}

// SMUFirmwareVersion returns the service processor firmware version
// captured during the probe.
func (c *Client) SMUFirmwareVersion() (FirmwareVersion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgGetSMUVersion); err != nil {
		return FirmwareVersion{}, err
	}
	return c.firmware, nil
}

// InterfaceVersion returns the interface version the firmware
// reported, which may exceed the version this client negotiated.
func (c *Client) InterfaceVersion() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgGetInterfaceVersion); err != nil {
		return 0, err
	}
	return c.reported, nil
}

// SocketPower returns the socket's current power consumption in
// milliwatts.
func (c *Client) SocketPower(socket int) (uint32, error) {
	return c.readWord(socket, mailbox.MsgGetSocketPower, nil)
}

// SetSocketPowerLimit caps the socket's power consumption, in
// milliwatts. The firmware clamps the value to the platform's valid
// range.
func (c *Client) SetSocketPowerLimit(socket int, limitMilliwatts uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetSocketPowerLimit); err != nil {
		return err
	}
	return c.exchange(socket, &mailbox.Message{
		ID:   mailbox.MsgSetSocketPowerLimit,
		Args: []uint32{limitMilliwatts},
	})
}

// SocketPowerLimit returns the socket's current power cap in
// milliwatts.
func (c *Client) SocketPowerLimit(socket int) (uint32, error) {
	return c.readWord(socket, mailbox.MsgGetSocketPowerLimit, nil)
}

// SocketMaxPowerLimit returns the largest power cap the socket
// accepts, in milliwatts.
func (c *Client) SocketMaxPowerLimit(socket int) (uint32, error) {
	return c.readWord(socket, mailbox.MsgGetSocketPowerLimitMax, nil)
}

// SetCPUBoostLimit caps the boost frequency of one core, in MHz. The
// limit applies to both SMT siblings of the core. A value at or above
// the fused maximum removes the cap.
func (c *Client) SetCPUBoostLimit(cpu int, limitMHz uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetBoostLimit); err != nil {
		return err
	}
	socket, apicid, err := c.cpuTarget(cpu)
	if err != nil {
		return err
	}
	return c.exchange(socket, &mailbox.Message{
		ID:   mailbox.MsgSetBoostLimit,
		Args: []uint32{uint32(apicid)<<16 | limitMHz},
	})
}

// SetSocketBoostLimit caps the boost frequency of every core in the
// socket, in MHz.
func (c *Client) SetSocketBoostLimit(socket int, limitMHz uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetBoostLimitSocket); err != nil {
		return err
	}
	return c.setSocketBoostLimit(socket, limitMHz)
}

// SetSystemBoostLimit caps the boost frequency of every core in every
// socket, in MHz.
func (c *Client) SetSystemBoostLimit(limitMHz uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetBoostLimitSocket); err != nil {
		return err
	}
	for socket := 0; socket < c.table.Sockets(); socket++ {
		if err := c.setSocketBoostLimit(socket, limitMHz); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) setSocketBoostLimit(socket int, limitMHz uint32) error {
	return c.exchange(socket, &mailbox.Message{
		ID:   mailbox.MsgSetBoostLimitSocket,
		Args: []uint32{limitMHz},
	})
}

// CPUBoostLimit returns the core's current boost frequency cap in MHz.
func (c *Client) CPUBoostLimit(cpu int) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgGetBoostLimit); err != nil {
		return 0, err
	}
	socket, apicid, err := c.cpuTarget(cpu)
	if err != nil {
		return 0, err
	}

	msg := &mailbox.Message{
		ID:       mailbox.MsgGetBoostLimit,
		Args:     []uint32{uint32(apicid)},
		Response: make([]uint32, 1),
	}
	if err := c.exchange(socket, msg); err != nil {
		return 0, err
	}
	return msg.Response[0], nil
}

// ProcHotStatus reports whether the socket is asserting PROCHOT.
func (c *Client) ProcHotStatus(socket int) (bool, error) {
	value, err := c.readWord(socket, mailbox.MsgGetProcHot, nil)
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// SetXGMIWidth bounds the dynamic inter-socket link width. The
// narrowest selectable width is x2; platforms older than family 0x19
// stop at x8. Returns ErrInvalidArgument when min exceeds max or a
// width is outside the platform's range. Applies to every socket.
func (c *Client) SetXGMIWidth(min, max XGMIWidth) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetXGMILinkWidth); err != nil {
		return err
	}
	return c.setXGMIWidth(min, max)
}

// SetXGMIAuto restores automatic link width selection over the
// platform's full range.
func (c *Client) SetXGMIAuto() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetXGMILinkWidth); err != nil {
		return err
	}
	return c.setXGMIWidth(c.minXGMIWidth(), XGMIWidthX16)
}

func (c *Client) minXGMIWidth() XGMIWidth {
	if c.cpus.Family() >= minimumFamily {
		return XGMIWidthX2
	}
	return XGMIWidthX8
}

func (c *Client) setXGMIWidth(min, max XGMIWidth) error {
	if min < c.minXGMIWidth() || min > XGMIWidthX16 || max < min || max > XGMIWidthX16 {
		return fmt.Errorf("link width range %s..%s: %w", min, max, ErrInvalidArgument)
	}

	msg := &mailbox.Message{
		ID:   mailbox.MsgSetXGMILinkWidth,
		Args: []uint32{uint32(min)<<8 | uint32(max)},
	}
	for socket := 0; socket < c.table.Sockets(); socket++ {
		if err := c.exchange(socket, msg); err != nil {
			return err
		}
	}
	return nil
}

// SetDataFabricPState selects the socket's data fabric P-state, or
// returns it to automatic selection with DFPStateAuto.
func (c *Client) SetDataFabricPState(socket int, pstate DFPState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The auto message has the higher id of the pair, so it gates
	// support for both.
	if err := c.enter(mailbox.MsgAutoDataFabricPState); err != nil {
		return err
	}
	if pstate > DFPStateAuto {
		return fmt.Errorf("fabric P-state %d: %w", pstate, ErrInvalidArgument)
	}

	msg := &mailbox.Message{ID: mailbox.MsgAutoDataFabricPState}
	if pstate != DFPStateAuto {
		msg = &mailbox.Message{
			ID:   mailbox.MsgSetDataFabricPState,
			Args: []uint32{uint32(pstate)},
		}
	}
	return c.exchange(socket, msg)
}

// FabricClocks returns the socket's current data fabric and memory
// clocks in MHz.
func (c *Client) FabricClocks(socket int) (fabricMHz, memoryMHz int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgGetFabricClocks); err != nil {
		return 0, 0, err
	}
	msg := &mailbox.Message{
		ID:       mailbox.MsgGetFabricClocks,
		Response: make([]uint32, 2),
	}
	if err := c.exchange(socket, msg); err != nil {
		return 0, 0, err
	}
	return int(msg.Response[0]), int(msg.Response[1]), nil
}

// DataFabricClock returns the socket's current data fabric clock in
// MHz.
func (c *Client) DataFabricClock(socket int) (int, error) {
	fabric, _, err := c.FabricClocks(socket)
	return fabric, err
}

// MemoryClock returns the socket's current memory clock in MHz.
func (c *Client) MemoryClock(socket int) (int, error) {
	_, memory, err := c.FabricClocks(socket)
	return memory, err
}

// CoreClockMaxFrequency returns the most restrictive core frequency
// limit currently in effect on the socket, in MHz.
func (c *Client) CoreClockMaxFrequency(socket int) (uint32, error) {
	return c.readWord(socket, mailbox.MsgGetCoreClockThrottleLimit, nil)
}

// C0Residency returns the average C0 residency across the socket's
// cores as a percentage, 100 meaning fully loaded.
func (c *Client) C0Residency(socket int) (uint32, error) {
	return c.readWord(socket, mailbox.MsgGetC0Residency, nil)
}

// SetNBIOPState sets the P-state of the north-bridge tile decoding the
// given PCI bus.
func (c *Client) SetNBIOPState(bus uint8, pstate NBIOPState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(mailbox.MsgSetNBIODPMLevel); err != nil {
		return err
	}

	ap, ok := c.table.ByBus(bus)
	if !ok {
		return fmt.Errorf("bus %#02x not decoded by any access point: %w", bus, ErrInvalidArgument)
	}

	var dpmMin, dpmMax uint32
	switch pstate {
	case NBIOPStateAuto:
		dpmMin, dpmMax = 0, 2
	case NBIOPStateP0:
		dpmMin, dpmMax = 2, 2
	default:
		return fmt.Errorf("nbio P-state %d: %w", pstate, ErrInvalidArgument)
	}

	return c.exchange(ap.Socket, &mailbox.Message{
		ID:   mailbox.MsgSetNBIODPMLevel,
		Args: []uint32{uint32(ap.Tile)<<16 | dpmMax<<8 | dpmMin},
	})
}

// NextBus iterates the discovered access points: it returns the bus
// base of the access point at idx along with the next index to pass,
// or ErrInvalidArgument past the end. Start at 0.
func (c *Client) NextBus(idx int) (next int, bus uint8, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.privileged() {
		return 0, 0, ErrPermission
	}
	if err := c.ensureReady(); err != nil {
		return 0, 0, err
	}

	ap, ok := c.table.At(idx)
	if !ok {
		return 0, 0, fmt.Errorf("access point index %d: %w", idx, ErrInvalidArgument)
	}
	return idx + 1, ap.BusBase, nil
}

// DDRBandwidths returns the socket's memory bandwidth telemetry.
func (c *Client) DDRBandwidths(socket int) (DDRBandwidth, error) {
	value, err := c.readWord(socket, mailbox.MsgGetDDRBandwidth, nil)
	if err != nil {
		return DDRBandwidth{}, err
	}
	return DDRBandwidth{
		MaxGBps:         value >> 20,
		UtilizedGBps:    (value >> 8) & 0xFFFFF,
		UtilizedPercent: value & 0xFF,
	}, nil
}

// DDRMaxBandwidth returns the socket's theoretical maximum memory
// bandwidth in GB/s.
func (c *Client) DDRMaxBandwidth(socket int) (uint32, error) {
	bw, err := c.DDRBandwidths(socket)
	return bw.MaxGBps, err
}

// DDRUtilizedBandwidth returns the socket's current memory bandwidth
// utilization in GB/s.
func (c *Client) DDRUtilizedBandwidth(socket int) (uint32, error) {
	bw, err := c.DDRBandwidths(socket)
	return bw.UtilizedGBps, err
}

// DDRUtilizedPercent returns the socket's memory bandwidth utilization
// as a percentage of maximum.
func (c *Client) DDRUtilizedPercent(socket int) (uint32, error) {
	bw, err := c.DDRBandwidths(socket)
	return bw.UtilizedPercent, err
}

// readWord runs a single-response-word query against a socket.
func (c *Client) readWord(socket int, id mailbox.ID, args []uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enter(id); err != nil {
		return 0, err
	}
	msg := &mailbox.Message{ID: id, Args: args, Response: make([]uint32, 1)}
	if err := c.exchange(socket, msg); err != nil {
		return 0, err
	}
	return msg.Response[0], nil
}
