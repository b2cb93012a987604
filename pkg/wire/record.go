package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Op identifies a daemon operation.
type Op uint32

// Daemon operations. OpDaemonPing and OpDaemonExit manage the daemon
// itself; everything else maps to one client library call.
const (
	OpGetVersion Op = iota + 1
	OpSocketPower
	OpSocketPowerLimit
	OpSetSocketPowerLimit
	OpSocketPowerMax
	OpSetCPUBoostLimit
	OpSetSocketBoostLimit
	OpSetSystemBoostLimit
	OpCPUBoostLimit
	OpProcHot
	OpXGMIWidth
	OpXGMIAuto
	OpDFPState
	OpFabricClocks
	OpCoreClockMax
	OpC0Residency
	OpNBIOPState
	OpNBIONextBus
	OpDDRBandwidth
	OpDaemonPing
	OpDaemonExit
)

// String returns the operation name.
func (op Op) String() string {
	names := [...]string{
		OpGetVersion:          "GetVersion",
		OpSocketPower:         "SocketPower",
		OpSocketPowerLimit:    "SocketPowerLimit",
		OpSetSocketPowerLimit: "SetSocketPowerLimit",
		OpSocketPowerMax:      "SocketPowerMax",
		OpSetCPUBoostLimit:    "SetCPUBoostLimit",
		OpSetSocketBoostLimit: "SetSocketBoostLimit",
		OpSetSystemBoostLimit: "SetSystemBoostLimit",
		OpCPUBoostLimit:       "CPUBoostLimit",
		OpProcHot:             "ProcHot",
		OpXGMIWidth:           "XGMIWidth",
		OpXGMIAuto:            "XGMIAuto",
		OpDFPState:            "DFPState",
		OpFabricClocks:        "FabricClocks",
		OpCoreClockMax:        "CoreClockMax",
		OpC0Residency:         "C0Residency",
		OpNBIOPState:          "NBIOPState",
		OpNBIONextBus:         "NBIONextBus",
		OpDDRBandwidth:        "DDRBandwidth",
		OpDaemonPing:          "DaemonPing",
		OpDaemonExit:          "DaemonExit",
	}
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return fmt.Sprintf("Op(%d)", uint32(op))
}

// MaxWords is the argument and response slot count of a Record.
const MaxWords = 8

// RecordSize is the encoded size of a Record in bytes.
const RecordSize = 4*5 + 4*MaxWords*2

// Record is one request or reply. A reply reuses the request's Op;
// ErrFlag is nonzero on failure with OSError carrying the errno-style
// code.
type Record struct {
	Op            Op
	ErrFlag       uint32
	OSError       int32
	ArgCount      uint32
	ResponseCount uint32
	Args          [MaxWords]uint32
	Response      [MaxWords]uint32
}

// Request builds a request record for op with the given argument
// words.
func Request(op Op, args ...uint32) (Record, error) {
	if len(args) > MaxWords {
		return Record{}, fmt.Errorf("%d arguments exceed the %d record slots", len(args), MaxWords)
	}
	r := Record{Op: op, ArgCount: uint32(len(args))}
	copy(r.Args[:], args)
	return r, nil
}

// Fail builds the error reply for a request.
func Fail(op Op, oserror int32) Record {
	return Record{Op: op, ErrFlag: 1, OSError: oserror}
}

// Reply builds the success reply for a request with the given response
// words.
func Reply(op Op, response ...uint32) Record {
	r := Record{Op: op, ResponseCount: uint32(len(response))}
	copy(r.Response[:], response)
	return r
}

// Failed reports whether the record is an error reply.
func (r *Record) Failed() bool {
	return r.ErrFlag != 0
}

// WriteTo encodes the record to w in little-endian byte order.
func (r *Record) WriteTo(w io.Writer) (int64, error) {
	var buf [RecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.Op))
	binary.LittleEndian.PutUint32(buf[4:], r.ErrFlag)
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.OSError))
	binary.LittleEndian.PutUint32(buf[12:], r.ArgCount)
	binary.LittleEndian.PutUint32(buf[16:], r.ResponseCount)
	for i := 0; i < MaxWords; i++ {
		binary.LittleEndian.PutUint32(buf[20+4*i:], r.Args[i])
		binary.LittleEndian.PutUint32(buf[20+4*MaxWords+4*i:], r.Response[i])
	}
	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadFrom decodes one record from r.
func (r *Record) ReadFrom(reader io.Reader) (int64, error) {
	var buf [RecordSize]byte
	n, err := io.ReadFull(reader, buf[:])
	if err != nil {
		return int64(n), err
	}
	r.Op = Op(binary.LittleEndian.Uint32(buf[0:]))
	r.ErrFlag = binary.LittleEndian.Uint32(buf[4:])
	r.OSError = int32(binary.LittleEndian.Uint32(buf[8:]))
	r.ArgCount = binary.LittleEndian.Uint32(buf[12:])
	r.ResponseCount = binary.LittleEndian.Uint32(buf[16:])
	for i := 0; i < MaxWords; i++ {
		r.Args[i] = binary.LittleEndian.Uint32(buf[20+4*i:])
		r.Response[i] = binary.LittleEndian.Uint32(buf[20+4*MaxWords+4*i:])
	}
	if r.ArgCount > MaxWords || r.ResponseCount > MaxWords {
		return int64(n), fmt.Errorf("record counts %d/%d exceed the %d slots",
			r.ArgCount, r.ResponseCount, MaxWords)
	}
	return int64(n), nil
}

// Compile-time interface checks.
var (
	_ io.WriterTo   = (*Record)(nil)
	_ io.ReaderFrom = (*Record)(nil)
)
