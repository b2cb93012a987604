// Package wire is the fixed-size record protocol spoken between the
// control client and the privileged daemon. One request and one reply
// per operation, each a single Record encoded little-endian over the
// daemon's unix socket. The core client library knows nothing about
// this format; it exists only for the command glue.
package wire
