// Package cpumap maintains the logical CPU to (socket, APIC id) lookup
// table used to target per-core mailbox operations.
//
// The table is populated once from /proc/cpuinfo style records. Each
// "processor" record must be followed by a "physical id" field (the
// socket) and an "apicid" field (the platform core identifier); a record
// missing either is a load failure. The first record additionally
// provides the CPU vendor, family, and model used for the platform
// support check.
package cpumap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxCPUs is the size of the lookup table. Records for logical CPUs at
// or above this number are ignored.
const MaxCPUs = 256

// DefaultPath is where Linux exposes per-CPU topology records.
const DefaultPath = "/proc/cpuinfo"

// ErrInvalidCPU indicates a lookup for an out-of-range or unpopulated
// logical CPU number.
var ErrInvalidCPU = errors.New("invalid or unknown CPU number")

// Entry is one logical CPU's topology record.
type Entry struct {
	Valid  bool
	Socket int
	APICID int
}

// Map is the populated lookup table. Immutable once loaded.
type Map struct {
	entries [MaxCPUs]Entry
	count   int

	vendor string
	family int
	model  int
}

// Load reads and parses the per-CPU records at path. An empty path
// selects DefaultPath.
func Load(path string) (*Map, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// Parse parses per-CPU records from r.
func Parse(r io.Reader) (*Map, error) {
	m := &Map{}
	sc := bufio.NewScanner(r)

	firstRecord := true
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "processor") {
			continue
		}

		cpu, err := fieldValue(line)
		if err != nil {
			return nil, fmt.Errorf("malformed processor record: %q", line)
		}
		if cpu >= MaxCPUs {
			break
		}

		// Identity fields (vendor, family, model) sit between the
		// processor line and the physical id of the first record.
		var hook func(string)
		if firstRecord {
			hook = m.scanIdentity
			firstRecord = false
		}

		socket, ok := scanForward(sc, "physical id", hook)
		if !ok {
			return nil, fmt.Errorf("cpu %d: record has no physical id field", cpu)
		}
		apicid, ok := scanForward(sc, "apicid", nil)
		if !ok {
			return nil, fmt.Errorf("cpu %d: record has no apicid field", cpu)
		}

		m.entries[cpu] = Entry{Valid: true, Socket: socket, APICID: apicid}
		m.count++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return m, nil
}

// scanIdentity captures vendor/family/model from first-record fields.
func (m *Map) scanIdentity(line string) {
	switch {
	case strings.HasPrefix(line, "vendor_id"):
		if i := strings.IndexByte(line, ':'); i >= 0 {
			m.vendor = strings.TrimSpace(line[i+1:])
		}
	case strings.HasPrefix(line, "cpu family"):
		if v, err := fieldValue(line); err == nil {
			m.family = v
		}
	case strings.HasPrefix(line, "model name"):
		// Not the numeric model field.
	case strings.HasPrefix(line, "model"):
		if v, err := fieldValue(line); err == nil {
			m.model = v
		}
	}
}

// scanForward advances the scanner until a line with the given prefix
// and returns its integer value. Returns false if the input ends first.
// When hook is non-nil it sees every skipped line.
func scanForward(sc *bufio.Scanner, prefix string, hook func(string)) (int, bool) {
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, prefix) {
			if hook != nil {
				hook(line)
			}
			continue
		}
		v, err := fieldValue(line)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// fieldValue extracts the integer after the colon of a "name : value"
// record line.
func fieldValue(line string) (int, error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return 0, fmt.Errorf("no separator in %q", line)
	}
	return strconv.Atoi(strings.TrimSpace(line[i+1:]))
}

// APICID returns the platform core identifier for a logical CPU.
func (m *Map) APICID(cpu int) (int, error) {
	e, err := m.entry(cpu)
	if err != nil {
		return 0, err
	}
	return e.APICID, nil
}

// Socket returns the socket index for a logical CPU.
func (m *Map) Socket(cpu int) (int, error) {
	e, err := m.entry(cpu)
	if err != nil {
		return 0, err
	}
	return e.Socket, nil
}

func (m *Map) entry(cpu int) (Entry, error) {
	if cpu < 0 || cpu >= MaxCPUs {
		return Entry{}, fmt.Errorf("cpu %d out of range: %w", cpu, ErrInvalidCPU)
	}
	e := m.entries[cpu]
	if !e.Valid {
		return Entry{}, fmt.Errorf("cpu %d not present: %w", cpu, ErrInvalidCPU)
	}
	return e, nil
}

// Count returns the number of populated entries.
func (m *Map) Count() int {
	return m.count
}

// Vendor returns the CPU vendor string from the first record.
func (m *Map) Vendor() string {
	return m.vendor
}

// Family returns the CPU family number from the first record.
func (m *Map) Family() int {
	return m.family
}

// Model returns the CPU model number from the first record.
func (m *Map) Model() int {
	return m.model
}
