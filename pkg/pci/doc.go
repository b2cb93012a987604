// Package pci provides sysfs-backed access to PCI configuration space.
//
// It is deliberately narrow: enumeration of functions matching one
// vendor/device identity, and 32-bit reads/writes of their config space
// through the sysfs "config" file. The ConfigAccessor interface decouples
// the rest of the client from sysfs so tests can substitute a simulated
// device.
package pci
