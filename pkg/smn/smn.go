// Package smn implements the indirect register access primitive used to
// reach the system-management network behind a PCI root complex.
//
// Config space exposes two index/data apertures per device: a general
// purpose one for SMN registers, and a dedicated one for the mailbox.
// For both reads and writes, step one is to write the target address to
// the aperture's index register; step two is to read or write the
// aperture's data register. There are no retries at this layer; any
// config-space failure is surfaced to the caller unchanged.
package smn

import (
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
)

// Port selects one of the two index/data apertures by its fixed
// config-space register offsets.
type Port struct {
	// Name identifies the aperture in log events.
	Name string

	// Index is the config-space offset of the index register.
	Index int64

	// Data is the config-space offset of the data register.
	Data int64
}

// The two apertures defined for the IOHC device.
var (
	// SMN is the general purpose system-management aperture.
	SMN = Port{Name: "smn", Index: 0x60, Data: 0x64}

	// Mailbox is the aperture dedicated to mailbox messages and responses.
	Mailbox = Port{Name: "mailbox", Index: 0xC4, Data: 0xC8}
)

// Access performs indirect register accesses on one device.
// Logger may be nil to disable register-level capture.
type Access struct {
	Dev      pci.ConfigAccessor
	Logger   log.Logger
	ClientID string
}

// Read reads the 32-bit register at addr through the given aperture.
func (a Access) Read(port Port, addr uint32) (uint32, error) {
	if err := a.Dev.WriteConfig32(port.Index, addr); err != nil {
		return 0, err
	}
	value, err := a.Dev.ReadConfig32(port.Data)
	if err != nil {
		return 0, err
	}
	a.logAccess(port, addr, value, false)
	return value, nil
}

// Write writes the 32-bit register at addr through the given aperture.
func (a Access) Write(port Port, addr uint32, value uint32) error {
	if err := a.Dev.WriteConfig32(port.Index, addr); err != nil {
		return err
	}
	if err := a.Dev.WriteConfig32(port.Data, value); err != nil {
		return err
	}
	a.logAccess(port, addr, value, true)
	return nil
}

func (a Access) logAccess(port Port, addr, value uint32, write bool) {
	if a.Logger == nil {
		return
	}

	direction := log.DirectionIn
	if write {
		direction = log.DirectionOut
	}
	a.Logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  a.ClientID,
		Direction: direction,
		Layer:     log.LayerRegister,
		Category:  log.CategoryAccess,
		Device:    a.Dev.Address(),
		Register: &log.RegisterEvent{
			Port:    port.Name,
			Address: addr,
			Value:   value,
			Write:   write,
		},
	})
}
