// Package hsmp is the client for the host system management port of
// AMD server processors. It exposes the power, frequency, and fabric
// telemetry and control operations the platform firmware implements
// behind the mailbox.
//
// A Client is created unconnected. The first operation (or an explicit
// Initialize call) probes the platform: the CPU identity is checked,
// the PCI access points are discovered, the per-CPU topology is
// loaded, and a self-test exchange plus version negotiation runs
// against every socket. A platform that fails any part of the probe
// permanently disables the client; every later call fails fast with
// ErrNotSupported without touching the hardware again.
//
// All operations are synchronous and serialized against other
// processes through a cross-process file lock around each mailbox
// exchange. Clients require root.
package hsmp
