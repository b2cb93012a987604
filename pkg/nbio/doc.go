// Package nbio discovers the PCI access points through which the
// service processor mailbox is reached.
//
// A platform exposes one IOHC root-complex device per north-bridge
// tile, four tiles per socket. Discovery enumerates the IOHC devices,
// sorts them by bus number, derives each device's decoded bus range
// from its sorted neighbor, and reads each tile's identifier back
// through the auxiliary register space. The resulting table answers
// two questions for the layers above: which device fronts a given
// socket's mailbox, and which tile owns a given bus number.
package nbio
