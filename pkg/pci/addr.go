package pci

import (
	"fmt"
)

// Addr identifies a PCI function in domain:bus:slot.fn form.
type Addr struct {
	Domain uint16
	Bus    uint8
	Slot   uint8
	Fn     uint8
}

// ParseAddr parses a sysfs-style PCI address such as "0000:c0:00.0".
func ParseAddr(s string) (Addr, error) {
	var a Addr
	n, err := fmt.Sscanf(s, "%04x:%02x:%02x.%x", &a.Domain, &a.Bus, &a.Slot, &a.Fn)
	if n != 4 || err != nil {
		return Addr{}, fmt.Errorf("invalid PCI address %q", s)
	}
	return a, nil
}

// String returns the address in sysfs form: "0000:c0:00.0".
func (a Addr) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Slot, a.Fn)
}
