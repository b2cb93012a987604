package pci

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSysfsRoot is where Linux exposes PCI functions.
const DefaultSysfsRoot = "/sys/bus/pci/devices"

// ConfigAccessor is the config-space contract the rest of the client
// depends on. *Device implements it against sysfs; tests provide fakes.
type ConfigAccessor interface {
	// ReadConfig32 reads a 32-bit little-endian value at the given
	// config-space offset.
	ReadConfig32(offset int64) (uint32, error)

	// WriteConfig32 writes a 32-bit little-endian value at the given
	// config-space offset.
	WriteConfig32(offset int64, value uint32) error

	// Bus returns the bus number of the function's own address.
	Bus() uint8

	// Address returns the function address in sysfs form.
	Address() string

	// Close releases the underlying handle.
	Close() error
}

// Device is a sysfs-backed PCI function with an open config handle.
// The handle stays open for the life of the Device so repeated register
// accesses do not pay a path lookup each time.
type Device struct {
	addr   Addr
	vendor uint16
	device uint16
	config *os.File
}

// Open opens the function at addr under the given sysfs root.
func Open(root string, addr Addr) (*Device, error) {
	dir := filepath.Join(root, addr.String())

	vendor, err := readHexFile(filepath.Join(dir, "vendor"))
	if err != nil {
		return nil, fmt.Errorf("reading vendor id of %s: %w", addr, err)
	}
	device, err := readHexFile(filepath.Join(dir, "device"))
	if err != nil {
		return nil, fmt.Errorf("reading device id of %s: %w", addr, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "config"), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening config space of %s: %w", addr, err)
	}

	return &Device{
		addr:   addr,
		vendor: uint16(vendor),
		device: uint16(device),
		config: f,
	}, nil
}

// ReadConfig32 reads a 32-bit value from config space.
func (d *Device) ReadConfig32(offset int64) (uint32, error) {
	var b [4]byte
	if _, err := d.config.ReadAt(b[:], offset); err != nil {
		return 0, fmt.Errorf("config read at 0x%X of %s: %w", offset, d.addr, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteConfig32 writes a 32-bit value to config space.
func (d *Device) WriteConfig32(offset int64, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	if _, err := d.config.WriteAt(b[:], offset); err != nil {
		return fmt.Errorf("config write at 0x%X of %s: %w", offset, d.addr, err)
	}
	return nil
}

// Bus returns the function's bus number.
func (d *Device) Bus() uint8 {
	return d.addr.Bus
}

// Address returns the function address in sysfs form.
func (d *Device) Address() string {
	return d.addr.String()
}

// Vendor returns the PCI vendor id.
func (d *Device) Vendor() uint16 {
	return d.vendor
}

// DeviceID returns the PCI device id.
func (d *Device) DeviceID() uint16 {
	return d.device
}

// Close closes the config-space handle.
func (d *Device) Close() error {
	return d.config.Close()
}

// readHexFile reads a sysfs attribute of the form "0x1022\n".
func readHexFile(path string) (uint, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var v uint
	if n, err := fmt.Fscanf(f, "0x%x", &v); n != 1 || err != nil {
		return 0, fmt.Errorf("malformed hex attribute %s", path)
	}
	return v, nil
}

// Compile-time interface satisfaction check.
var _ ConfigAccessor = (*Device)(nil)
