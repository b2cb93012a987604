package hsmp

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsmp-protocol/hsmp-go/pkg/cpumap"
	"github.com/hsmp-protocol/hsmp-go/pkg/lockfile"
	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/mailbox"
	"github.com/hsmp-protocol/hsmp-go/pkg/nbio"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
	"github.com/hsmp-protocol/hsmp-go/pkg/version"
)

// State is the client lifecycle state.
type State uint8

const (
	// StateUninitialized is the created-but-unprobed state. The first
	// operation triggers initialization.
	StateUninitialized State = iota

	// StateProbing is the transient state while the platform is
	// checked, topology discovered, and firmware versions negotiated.
	StateProbing

	// StateReady means the probe succeeded and operations are served.
	StateReady

	// StateDisabled is absorbing: any probe failure lands here and
	// every later operation fails fast without hardware access.
	StateDisabled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateProbing:
		return "Probing"
	case StateReady:
		return "Ready"
	case StateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// FirmwareVersion identifies the service processor firmware build.
type FirmwareVersion struct {
	Major uint8
	Minor uint8
	Debug uint8
}

// String renders the version as major.minor.debug.
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Debug)
}

// firmwareVersionFromRaw unpacks the version register value: debug in
// the low byte, then minor, then major.
func firmwareVersionFromRaw(raw uint32) FirmwareVersion {
	return FirmwareVersion{
		Major: uint8(raw >> 16),
		Minor: uint8(raw >> 8),
		Debug: uint8(raw),
	}
}

// Minimum supported platform identity.
const (
	vendorAMD     = "AuthenticAMD"
	minimumFamily = 0x19
)

// Option configures a Client.
type Option func(*Client)

// WithLogger directs client events to l.
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClientID overrides the generated client correlation id.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// WithLockPath overrides the exchange lock file path.
func WithLockPath(path string) Option {
	return func(c *Client) { c.lockPath = path }
}

// WithSysfsRoot overrides the sysfs directory scanned for PCI devices.
func WithSysfsRoot(root string) Option {
	return func(c *Client) { c.sysfsRoot = root }
}

// WithCPUInfoPath overrides the per-CPU topology file.
func WithCPUInfoPath(path string) Option {
	return func(c *Client) { c.cpuinfoPath = path }
}

// WithPollParameters overrides the mailbox poll interval and budget.
func WithPollParameters(interval time.Duration, budget int) Option {
	return func(c *Client) {
		c.engine.PollInterval = interval
		c.engine.PollBudget = budget
	}
}

// WithSleep substitutes the poll sleep, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.engine.Sleep = sleep }
}

// WithEnumerate substitutes PCI device enumeration, for tests.
func WithEnumerate(enumerate func() ([]pci.ConfigAccessor, error)) Option {
	return func(c *Client) { c.enumerate = enumerate }
}

// WithPrivilegeCheck substitutes the root check, for tests.
func WithPrivilegeCheck(check func() bool) Option {
	return func(c *Client) { c.privileged = check }
}

// Client talks to the service processors of the local machine. Create
// one with New; the zero value is not usable. Safe for concurrent use;
// operations serialize internally and, across processes, through the
// exchange lock.
type Client struct {
	mu    sync.Mutex
	state State

	logger      log.Logger
	clientID    string
	lockPath    string
	sysfsRoot   string
	cpuinfoPath string
	enumerate   func() ([]pci.ConfigAccessor, error)
	privileged  func() bool

	engine mailbox.Engine
	lock   *lockfile.Lock

	table      *nbio.Table
	cpus       *cpumap.Map
	firmware   FirmwareVersion
	reported   int
	negotiated int
}

// New builds an unconnected client. The platform is probed on the
// first operation or an explicit Initialize.
func New(opts ...Option) *Client {
	c := &Client{
		clientID:    uuid.NewString(),
		lockPath:    lockfile.DefaultPath,
		cpuinfoPath: cpumap.DefaultPath,
		privileged:  func() bool { return os.Geteuid() == 0 },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lock = lockfile.New(c.lockPath)
	c.engine.Logger = c.logger
	c.engine.ClientID = c.clientID
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the correlation id attached to emitted events.
func (c *Client) ClientID() string {
	return c.clientID
}

// Initialize probes the platform now instead of on first use.
// Idempotent once Ready; fails with ErrNotSupported once Disabled.
func (c *Client) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.privileged() {
		return ErrPermission
	}
	return c.ensureReady()
}

// Close releases the PCI device handles. A Ready client returns to
// Uninitialized and may be re-initialized; a Disabled client stays
// disabled.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.table != nil {
		err = c.table.Close()
		c.table = nil
	}
	c.cpus = nil
	if c.state == StateReady {
		c.transition(StateUninitialized, "closed")
	}
	return err
}

// ensureReady performs the disabled check and lazy probe. Callers hold
// c.mu and have verified privilege.
func (c *Client) ensureReady() error {
	switch c.state {
	case StateReady:
		return nil
	case StateDisabled:
		return fmt.Errorf("client is disabled: %w", ErrNotSupported)
	}

	if err := c.initialize(); err != nil {
		if c.table != nil {
			_ = c.table.Close()
			c.table = nil
		}
		c.transition(StateDisabled, err.Error())
		return err
	}
	c.transition(StateReady, "probe complete")
	return nil
}

// initialize runs the whole probe sequence: platform identity, access
// point discovery, CPU topology, self test, version negotiation.
func (c *Client) initialize() error {
	c.transition(StateProbing, "first use")

	cpus, err := cpumap.Load(c.cpuinfoPath)
	if err != nil {
		return fmt.Errorf("loading CPU topology: %w", err)
	}
	if cpus.Vendor() != vendorAMD || cpus.Family() < minimumFamily {
		return fmt.Errorf("unsupported platform %s family %#x: %w",
			cpus.Vendor(), cpus.Family(), ErrNotSupported)
	}
	c.cpus = cpus

	table, err := nbio.Discover(nbio.Config{
		Enumerate: c.enumerate,
		SysfsRoot: c.sysfsRoot,
		Logger:    c.logger,
		ClientID:  c.clientID,
	})
	if err != nil {
		return err
	}
	c.table = table

	return c.probe()
}

// probe self-tests every socket, then reads the firmware and interface
// versions from socket 0 and negotiates the version ceiling.
func (c *Client) probe() error {
	for socket := 0; socket < c.table.Sockets(); socket++ {
		msg := &mailbox.Message{
			ID:       mailbox.MsgTestMessage,
			Args:     []uint32{uint32(socket) + 1},
			Response: make([]uint32, 1),
		}
		if err := c.exchange(socket, msg); err != nil {
			return fmt.Errorf("socket %d self test: %w", socket, err)
		}
		if msg.Response[0] != msg.Args[0]+1 {
			return fmt.Errorf("socket %d self test: sent %d, received %d: %w",
				socket, msg.Args[0], msg.Response[0], ErrNotSupported)
		}
	}

	msg := &mailbox.Message{ID: mailbox.MsgGetSMUVersion, Response: make([]uint32, 1)}
	if err := c.exchange(0, msg); err != nil {
		return fmt.Errorf("reading firmware version: %w", err)
	}
	c.firmware = firmwareVersionFromRaw(msg.Response[0])

	msg = &mailbox.Message{ID: mailbox.MsgGetInterfaceVersion, Response: make([]uint32, 1)}
	if err := c.exchange(0, msg); err != nil {
		return fmt.Errorf("reading interface version: %w", err)
	}
	c.reported = int(msg.Response[0])
	c.negotiated = version.Negotiate(c.reported)
	return nil
}

// enter is the per-operation gate: privilege, disabled short circuit,
// lazy initialization, capability check for the message about to be
// sent. Callers hold c.mu.
func (c *Client) enter(id mailbox.ID) error {
	if !c.privileged() {
		return ErrPermission
	}
	if err := c.ensureReady(); err != nil {
		return err
	}
	if !version.Supported(c.negotiated, uint32(id)) {
		return fmt.Errorf("message %s needs a newer interface version than %d: %w",
			id, c.negotiated, ErrNotSupported)
	}
	return nil
}

// exchange validates the socket, runs one mailbox round trip under the
// cross-process lock, and maps an invalid message id for a
// version-supported message to ErrProtocol. The socket check happens
// before the lock is touched. Callers hold c.mu.
func (c *Client) exchange(socket int, msg *mailbox.Message) error {
	dev, ok := c.table.SocketDevice(socket)
	if !ok {
		return fmt.Errorf("socket %d out of range: %w", socket, ErrInvalidArgument)
	}

	err := c.lock.WithLock(func() error {
		return c.engine.Exchange(dev, socket, msg)
	})
	if err == nil {
		return nil
	}

	if status, ok := mailbox.AsStatus(err); ok && status == mailbox.StatusInvalidMessageID &&
		version.Supported(c.negotiated, uint32(msg.ID)) {
		return fmt.Errorf("message %s rejected by firmware reporting interface version %d: %w",
			msg.ID, c.reported, ErrProtocol)
	}
	return err
}

// transition moves the lifecycle state and logs the change.
func (c *Client) transition(next State, reason string) {
	prev := c.state
	c.state = next
	if c.logger == nil || prev == next {
		return
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Direction: log.DirectionIn,
		Layer:     log.LayerLifecycle,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

// cpuTarget resolves a logical CPU to its socket and platform core id.
func (c *Client) cpuTarget(cpu int) (socket, apicid int, err error) {
	apicid, err = c.cpus.APICID(cpu)
	if err == nil {
		socket, err = c.cpus.Socket(cpu)
	}
	if err != nil {
		if errors.Is(err, cpumap.ErrInvalidCPU) {
			return 0, 0, fmt.Errorf("cpu %d: %w", cpu, ErrInvalidArgument)
		}
		return 0, 0, err
	}
	return socket, apicid, nil
}
