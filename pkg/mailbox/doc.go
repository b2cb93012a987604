// Package mailbox implements the request/response protocol spoken with
// the service processor through three well-known registers behind the
// mailbox aperture: a message register (the doorbell), a status
// register, and a block of up to eight data words shared between
// arguments and responses.
//
// One Exchange is one round trip: clear the status register, write the
// argument words, ring the doorbell, poll the status register at a
// fixed interval until the firmware posts a result or the retry budget
// runs out, then read the response words. There is no pipelining and no
// cancellation once the doorbell has been written.
package mailbox
