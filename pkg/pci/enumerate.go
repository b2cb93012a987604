package pci

import (
	"fmt"
	"os"
	"path/filepath"
)

// Enumerate opens every PCI function under root whose vendor and device
// ids match. Functions that do not match are skipped; a matching function
// that cannot be opened is an error. On error, any functions already
// opened are closed before returning.
func Enumerate(root string, vendor, device uint16) ([]*Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	var devs []*Device
	for _, entry := range entries {
		addr, err := ParseAddr(entry.Name())
		if err != nil {
			// Not a PCI function directory.
			continue
		}

		v, err := readHexFile(filepath.Join(root, entry.Name(), "vendor"))
		if err != nil {
			continue
		}
		dv, err := readHexFile(filepath.Join(root, entry.Name(), "device"))
		if err != nil {
			continue
		}
		if uint16(v) != vendor || uint16(dv) != device {
			continue
		}

		d, err := Open(root, addr)
		if err != nil {
			CloseAll(devs)
			return nil, err
		}
		devs = append(devs, d)
	}

	return devs, nil
}

// CloseAll closes every device in devs, ignoring individual errors.
func CloseAll(devs []*Device) {
	for _, d := range devs {
		_ = d.Close()
	}
}
