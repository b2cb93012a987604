// Package smusim emulates the config-space view of a platform's
// service processor for tests: the index/data apertures, the tile
// identity readback registers, and a mailbox that executes messages.
//
// A Platform owns one SMU per socket, shared by the socket's four
// simulated IOHC devices the way real tiles share their socket's
// register space. Tests reach into the SMU to preload firmware
// versions, override message handlers, or wedge the mailbox.
package smusim

import (
	"fmt"
	"sync"

	"github.com/hsmp-protocol/hsmp-go/pkg/mailbox"
	"github.com/hsmp-protocol/hsmp-go/pkg/nbio"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
)

// Handler executes one mailbox message. Response words beyond the
// slice are left untouched in the data registers.
type Handler func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32)

// SMU is one socket's simulated service processor: mailbox state plus
// the socket-wide auxiliary register file.
type SMU struct {
	mu sync.Mutex

	// SMUVersion and InterfaceVersion are returned by the version
	// query messages.
	SMUVersion       uint32
	InterfaceVersion uint32

	// NeverReady wedges the mailbox: doorbells are accepted but no
	// completion status is ever posted.
	NeverReady bool

	// Handlers overrides message execution per id.
	Handlers map[mailbox.ID]Handler

	// Executed counts doorbell writes, including wedged ones.
	Executed int

	status uint32
	data   [mailbox.MaxWords]uint32
	regs   map[uint32]uint32

	// Scratch state backing the default handlers.
	powerLimit uint32
	boost      map[uint32]uint32
}

func newSMU() *SMU {
	return &SMU{
		SMUVersion:       0x002E5A00,
		InterfaceVersion: 3,
		Handlers:         make(map[mailbox.ID]Handler),
		regs:             make(map[uint32]uint32),
		powerLimit:       200000,
		boost:            make(map[uint32]uint32),
	}
}

// SetRegister preloads an auxiliary register visible through the
// general purpose aperture.
func (s *SMU) SetRegister(addr, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[addr] = value
}

// Status returns the current mailbox status register value.
func (s *SMU) Status() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SMU) readSMN(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[addr]
}

func (s *SMU) writeSMN(addr, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[addr] = value
}

func (s *SMU) readMailbox(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case addr == mailbox.RegStatus:
		return s.status
	case addr >= mailbox.RegData && addr < mailbox.RegData+4*mailbox.MaxWords:
		return s.data[(addr-mailbox.RegData)/4]
	default:
		return 0
	}
}

func (s *SMU) writeMailbox(addr, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case addr == mailbox.RegStatus:
		s.status = value
	case addr >= mailbox.RegData && addr < mailbox.RegData+4*mailbox.MaxWords:
		s.data[(addr-mailbox.RegData)/4] = value
	case addr == mailbox.RegMessageID:
		s.execute(mailbox.ID(value))
	}
}

// execute runs a doorbelled message. Called with mu held.
func (s *SMU) execute(id mailbox.ID) {
	s.Executed++
	if s.NeverReady {
		return
	}

	handler := s.Handlers[id]
	if handler == nil {
		handler = s.defaultHandler(id)
	}

	status, resp := handler(s.data)
	s.status = uint32(status)
	if status == mailbox.StatusOK {
		for i, word := range resp {
			if i >= mailbox.MaxWords {
				break
			}
			s.data[i] = word
		}
	}
}

// maxMessageID mirrors the firmware's interface version ceilings.
func (s *SMU) maxMessageID() mailbox.ID {
	switch {
	case s.InterfaceVersion <= 1:
		return 0x11
	case s.InterfaceVersion == 2:
		return 0x12
	default:
		return 0x14
	}
}

func (s *SMU) defaultHandler(id mailbox.ID) Handler {
	if id > s.maxMessageID() || id == 0x13 || id == 0 {
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusInvalidMessageID, nil
		}
	}

	switch id {
	case mailbox.MsgTestMessage:
		return func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{args[0] + 1}
		}
	case mailbox.MsgGetSMUVersion:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{s.SMUVersion}
		}
	case mailbox.MsgGetInterfaceVersion:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{s.InterfaceVersion}
		}
	case mailbox.MsgGetSocketPower:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{125000}
		}
	case mailbox.MsgSetSocketPowerLimit:
		return func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			s.powerLimit = args[0]
			return mailbox.StatusOK, nil
		}
	case mailbox.MsgGetSocketPowerLimit:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{s.powerLimit}
		}
	case mailbox.MsgGetSocketPowerLimitMax:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{240000}
		}
	case mailbox.MsgSetBoostLimit:
		return func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			s.boost[args[0]>>16] = args[0] & 0xFFFF
			return mailbox.StatusOK, nil
		}
	case mailbox.MsgSetBoostLimitSocket:
		return func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			s.boost[0xFFFFFFFF] = args[0] & 0xFFFF
			return mailbox.StatusOK, nil
		}
	case mailbox.MsgGetBoostLimit:
		return func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			limit, ok := s.boost[args[0]]
			if !ok {
				limit = 3500
			}
			return mailbox.StatusOK, []uint32{limit}
		}
	case mailbox.MsgGetProcHot:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{0}
		}
	case mailbox.MsgGetFabricClocks:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{1467, 1600}
		}
	case mailbox.MsgGetCoreClockThrottleLimit:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{3150}
		}
	case mailbox.MsgGetC0Residency:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, []uint32{87}
		}
	case mailbox.MsgGetDDRBandwidth:
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			// max 512 GB/s, utilized 147 GB/s, 29 percent.
			return mailbox.StatusOK, []uint32{512<<20 | 147<<8 | 29}
		}
	default:
		// Set-style messages with no interesting side effect.
		return func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
			return mailbox.StatusOK, nil
		}
	}
}

// Device simulates one IOHC function's config space. It satisfies
// pci.ConfigAccessor.
type Device struct {
	smu  *SMU
	bus  uint8
	addr string

	mu        sync.Mutex
	smnIndex  uint32
	mboxIndex uint32
	closed    bool

	// FailConfig makes every config access fail, modeling a device
	// that disappeared from the bus.
	FailConfig error
}

var _ pci.ConfigAccessor = (*Device)(nil)

// ReadConfig32 reads a config-space register. Reads of a data register
// resolve through the index register written before it.
func (d *Device) ReadConfig32(offset int64) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return 0, err
	}

	switch offset {
	case 0x60:
		return d.smnIndex, nil
	case 0x64:
		return d.smu.readSMN(d.smnIndex), nil
	case 0xC4:
		return d.mboxIndex, nil
	case 0xC8:
		return d.smu.readMailbox(d.mboxIndex), nil
	default:
		return 0, fmt.Errorf("device %s: unmodeled config read at %#x", d.addr, offset)
	}
}

// WriteConfig32 writes a config-space register. A write through the
// mailbox aperture to the message register rings the doorbell.
func (d *Device) WriteConfig32(offset int64, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return err
	}

	switch offset {
	case 0x60:
		d.smnIndex = value
	case 0x64:
		d.smu.writeSMN(d.smnIndex, value)
	case 0xC4:
		d.mboxIndex = value
	case 0xC8:
		d.smu.writeMailbox(d.mboxIndex, value)
	default:
		return fmt.Errorf("device %s: unmodeled config write at %#x", d.addr, offset)
	}
	return nil
}

func (d *Device) check() error {
	if d.closed {
		return fmt.Errorf("device %s: closed", d.addr)
	}
	if d.FailConfig != nil {
		return d.FailConfig
	}
	return nil
}

// Bus returns the simulated bus number.
func (d *Device) Bus() uint8 {
	return d.bus
}

// Address returns the simulated PCI address.
func (d *Device) Address() string {
	return d.addr
}

// Close marks the device closed; further accesses fail.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Platform is a whole simulated machine: one SMU per socket and four
// IOHC devices per socket with realistic bus assignments.
type Platform struct {
	SMUs    []*SMU
	Devices []*Device
}

// Bus bases per socket, in tile order.
var busBases = [nbio.MaxSockets][nbio.TilesPerSocket]uint8{
	{0x00, 0x20, 0x40, 0x60},
	{0x80, 0xA0, 0xC0, 0xE0},
}

// NewPlatform builds a simulated machine with the given socket count
// (1 or 2). Tile identity readback registers are preloaded so
// discovery succeeds.
func NewPlatform(sockets int) *Platform {
	if sockets < 1 || sockets > nbio.MaxSockets {
		panic(fmt.Sprintf("smusim: invalid socket count %d", sockets))
	}

	p := &Platform{}
	for s := 0; s < sockets; s++ {
		smu := newSMU()
		p.SMUs = append(p.SMUs, smu)
		for t := 0; t < nbio.TilesPerSocket; t++ {
			bus := busBases[s][t]
			smu.SetRegister(nbio.RegBusNumCntl+uint32(t)*nbio.MiscOffset, uint32(bus))
			p.Devices = append(p.Devices, &Device{
				smu:  smu,
				bus:  bus,
				addr: fmt.Sprintf("0000:%02x:00.0", bus),
			})
		}
	}
	return p
}

// Enumerate hands out the platform's devices in a deliberately
// unsorted order so callers exercise their own sorting. Plugs into
// discovery as the enumeration override.
func (p *Platform) Enumerate() ([]pci.ConfigAccessor, error) {
	devs := make([]pci.ConfigAccessor, 0, len(p.Devices))
	for i := len(p.Devices) - 1; i >= 0; i-- {
		devs = append(devs, p.Devices[i])
	}
	return devs, nil
}

// Device returns the simulated device at tile t of socket s.
func (p *Platform) Device(s, t int) *Device {
	return p.Devices[s*nbio.TilesPerSocket+t]
}

// SMU returns socket s's service processor.
func (p *Platform) SMU(s int) *SMU {
	return p.SMUs[s]
}
