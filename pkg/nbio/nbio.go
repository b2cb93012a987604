package nbio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
	"github.com/hsmp-protocol/hsmp-go/pkg/smn"
)

// PCI identity of the IOHC root-complex device fronting each
// north-bridge tile.
const (
	VendorAMD  uint16 = 0x1022
	DeviceIOHC uint16 = 0x1480
)

// Platform shape. A socket always carries TilesPerSocket IOHC devices,
// so discovery accepts exactly one or two sockets worth.
const (
	TilesPerSocket = 4
	MaxSockets     = 2
	MaxTiles       = TilesPerSocket * MaxSockets
)

// Tile identifier readback registers in the auxiliary register space.
// Tile n of a socket reports its decoded bus base at
// RegBusNumCntl + n*MiscOffset, readable through any of the socket's
// devices.
const (
	RegBusNumCntl uint32 = 0x13B10044
	MiscOffset    uint32 = 0x00100000
)

// ErrDiscovery indicates the platform's bus topology is absent or
// malformed. It is fatal for the process; callers disable themselves
// once they see it.
var ErrDiscovery = errors.New("access point discovery failed")

// AccessPoint is one IOHC device with its decoded bus range and
// position in the topology.
type AccessPoint struct {
	// Dev is the open config-space handle.
	Dev pci.ConfigAccessor

	// Socket is the socket index the device belongs to.
	Socket int

	// Tile is the identifier the device reported for itself.
	Tile int

	// BusBase and BusLimit bound the bus numbers this device decodes,
	// inclusive.
	BusBase  uint8
	BusLimit uint8
}

// Table is the discovered topology, sorted ascending by BusBase. The
// bus ranges of a valid table exactly partition 0..255. Immutable
// after discovery.
type Table struct {
	aps []AccessPoint
}

// Config carries the discovery knobs. The zero value enumerates IOHC
// devices under the default sysfs tree without logging.
type Config struct {
	// Enumerate overrides device enumeration, for tests. Nil selects
	// sysfs enumeration of VendorAMD/DeviceIOHC devices.
	Enumerate func() ([]pci.ConfigAccessor, error)

	// SysfsRoot overrides the sysfs device directory used by the
	// default enumeration.
	SysfsRoot string

	// Logger receives register-layer and error events. Nil disables
	// capture.
	Logger log.Logger

	// ClientID tags emitted events.
	ClientID string
}

// Discover enumerates the platform's IOHC devices and builds the
// access point table. Every failure closes any devices already opened
// and reports ErrDiscovery.
func Discover(cfg Config) (*Table, error) {
	enumerate := cfg.Enumerate
	if enumerate == nil {
		enumerate = func() ([]pci.ConfigAccessor, error) {
			root := cfg.SysfsRoot
			if root == "" {
				root = pci.DefaultSysfsRoot
			}
			opened, err := pci.Enumerate(root, VendorAMD, DeviceIOHC)
			if err != nil {
				return nil, err
			}
			devs := make([]pci.ConfigAccessor, len(opened))
			for i, d := range opened {
				devs[i] = d
			}
			return devs, nil
		}
	}

	devs, err := enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %v", ErrDiscovery, err)
	}

	if len(devs) != TilesPerSocket && len(devs) != MaxTiles {
		for _, d := range devs {
			_ = d.Close()
		}
		return nil, fmt.Errorf("%w: expected %d or %d devices, found %d",
			ErrDiscovery, TilesPerSocket, MaxTiles, len(devs))
	}

	sort.Slice(devs, func(i, j int) bool { return devs[i].Bus() < devs[j].Bus() })

	t := &Table{aps: make([]AccessPoint, len(devs))}
	for i, dev := range devs {
		t.aps[i] = AccessPoint{
			Dev:     dev,
			Socket:  i / TilesPerSocket,
			BusBase: dev.Bus(),
		}
	}

	// Each device decodes every bus up to its successor's base. The
	// hardware assigns contiguous, non-overlapping ranges; this is
	// assumed, not verified.
	for i := range t.aps {
		if i < len(t.aps)-1 {
			t.aps[i].BusLimit = t.aps[i+1].BusBase - 1
		} else {
			t.aps[i].BusLimit = 0xFF
		}
	}

	// Read each tile's identity back through the register space and
	// attach it to the access point decoding the reported bus.
	for i := range t.aps {
		access := smn.Access{Dev: t.aps[i].Dev, Logger: cfg.Logger, ClientID: cfg.ClientID}
		addr := RegBusNumCntl + uint32(i%TilesPerSocket)*MiscOffset

		value, err := access.Read(smn.SMN, addr)
		if err != nil {
			logDiscoveryError(cfg, t.aps[i].Dev, fmt.Sprintf("reading tile identity at %#x", addr), err)
			t.Close()
			return nil, fmt.Errorf("%w: reading tile identity for device %s: %v",
				ErrDiscovery, t.aps[i].Dev.Address(), err)
		}

		base := uint8(value & 0xFF)
		target, ok := t.ByBus(base)
		if !ok {
			t.Close()
			return nil, fmt.Errorf("%w: tile readback reports bus %#02x outside every decoded range",
				ErrDiscovery, base)
		}
		for j := range t.aps {
			if t.aps[j].BusBase == target.BusBase {
				t.aps[j].Tile = i % TilesPerSocket
			}
		}
	}

	return t, nil
}

func logDiscoveryError(cfg Config, dev pci.ConfigAccessor, context string, err error) {
	if cfg.Logger == nil {
		return
	}
	cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  cfg.ClientID,
		Direction: log.DirectionIn,
		Layer:     log.LayerLifecycle,
		Category:  log.CategoryError,
		Device:    dev.Address(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerLifecycle,
			Message: err.Error(),
			Context: context,
		},
	})
}

// Len returns the number of access points.
func (t *Table) Len() int {
	return len(t.aps)
}

// Sockets returns the number of sockets the table covers.
func (t *Table) Sockets() int {
	return len(t.aps) / TilesPerSocket
}

// At returns the access point at sorted index i.
func (t *Table) At(i int) (AccessPoint, bool) {
	if i < 0 || i >= len(t.aps) {
		return AccessPoint{}, false
	}
	return t.aps[i], true
}

// SocketDevice returns the device carrying the given socket's mailbox,
// the lowest-bus access point of that socket.
func (t *Table) SocketDevice(socket int) (pci.ConfigAccessor, bool) {
	if socket < 0 || socket >= t.Sockets() {
		return nil, false
	}
	return t.aps[socket*TilesPerSocket].Dev, true
}

// ByBus returns the access point decoding the given bus number.
func (t *Table) ByBus(bus uint8) (AccessPoint, bool) {
	for _, ap := range t.aps {
		if bus >= ap.BusBase && bus <= ap.BusLimit {
			return ap, true
		}
	}
	return AccessPoint{}, false
}

// Close releases every device handle. It is safe to call on a table
// mid-discovery.
func (t *Table) Close() error {
	var first error
	for _, ap := range t.aps {
		if ap.Dev == nil {
			continue
		}
		if err := ap.Dev.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
