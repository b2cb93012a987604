package mailbox_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hsmp-protocol/hsmp-go/internal/smusim"
	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/mailbox"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
)

// instantEngine returns an engine whose sleeps are no-ops.
func instantEngine() *mailbox.Engine {
	return &mailbox.Engine{Sleep: func(time.Duration) {}}
}

// captureLogger records every event it receives.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(event log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureLogger) byLayer(layer log.Layer) []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []log.Event
	for _, ev := range c.events {
		if ev.Layer == layer {
			out = append(out, ev)
		}
	}
	return out
}

// configOp is one raw config-space access seen by recordingDev.
type configOp struct {
	write  bool
	offset int64
	value  uint32
}

// recordingDev wraps a device and records every config access.
type recordingDev struct {
	pci.ConfigAccessor
	ops []configOp
}

func (r *recordingDev) ReadConfig32(offset int64) (uint32, error) {
	value, err := r.ConfigAccessor.ReadConfig32(offset)
	r.ops = append(r.ops, configOp{write: false, offset: offset, value: value})
	return value, err
}

func (r *recordingDev) WriteConfig32(offset int64, value uint32) error {
	r.ops = append(r.ops, configOp{write: true, offset: offset, value: value})
	return r.ConfigAccessor.WriteConfig32(offset, value)
}

func TestExchangeTestMessage(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()

	msg := &mailbox.Message{
		ID:       mailbox.MsgTestMessage,
		Args:     []uint32{41},
		Response: make([]uint32, 1),
	}
	if err := engine.Exchange(platform.Device(0, 0), 0, msg); err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	if msg.Response[0] != 42 {
		t.Errorf("Response[0] = %d, want 42", msg.Response[0])
	}
}

func TestExchangeArgumentOrder(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()

	var seen [mailbox.MaxWords]uint32
	platform.SMU(0).Handlers[mailbox.MsgSetXGMILinkWidth] = func(args [mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
		seen = args
		return mailbox.StatusOK, nil
	}

	msg := &mailbox.Message{
		ID:   mailbox.MsgSetXGMILinkWidth,
		Args: []uint32{0x102, 0x304, 0x506},
	}
	if err := engine.Exchange(platform.Device(0, 0), 0, msg); err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}

	want := [mailbox.MaxWords]uint32{0x102, 0x304, 0x506}
	if seen != want {
		t.Errorf("firmware saw args %v, want %v", seen, want)
	}
}

func TestExchangeZeroResponseReadsNoData(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()

	dev := &recordingDev{ConfigAccessor: platform.Device(0, 0)}
	msg := &mailbox.Message{
		ID:   mailbox.MsgSetSocketPowerLimit,
		Args: []uint32{120000},
	}
	if err := engine.Exchange(dev, 0, msg); err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}

	// After the doorbell, the only index-register targets should be
	// the status register, never a data slot.
	doorbell := -1
	for i, op := range dev.ops {
		if op.write && op.offset == 0xC8 && op.value == uint32(mailbox.MsgSetSocketPowerLimit) {
			doorbell = i
		}
	}
	if doorbell < 0 {
		t.Fatal("no doorbell write recorded")
	}
	for _, op := range dev.ops[doorbell+1:] {
		if op.write && op.offset == 0xC4 &&
			op.value >= mailbox.RegData && op.value < mailbox.RegData+4*mailbox.MaxWords {
			t.Errorf("data register %#x addressed after doorbell with empty response", op.value)
		}
	}
}

func TestExchangeTimeout(t *testing.T) {
	platform := smusim.NewPlatform(1)
	platform.SMU(0).NeverReady = true

	sleeps := 0
	engine := &mailbox.Engine{
		PollBudget: 5,
		Sleep:      func(time.Duration) { sleeps++ },
	}

	msg := &mailbox.Message{ID: mailbox.MsgTestMessage, Args: []uint32{1}, Response: make([]uint32, 1)}
	err := engine.Exchange(platform.Device(0, 0), 0, msg)
	if !errors.Is(err, mailbox.ErrTimeout) {
		t.Fatalf("Exchange() error = %v, want ErrTimeout", err)
	}
	if sleeps != 5 {
		t.Errorf("slept %d times, want 5", sleeps)
	}
}

func TestExchangeStatusError(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()

	platform.SMU(0).Handlers[mailbox.MsgSetSocketPowerLimit] = func([mailbox.MaxWords]uint32) (mailbox.Status, []uint32) {
		return mailbox.StatusInvalidArgument, nil
	}

	msg := &mailbox.Message{ID: mailbox.MsgSetSocketPowerLimit, Args: []uint32{0xFFFFFFFF}}
	err := engine.Exchange(platform.Device(0, 0), 0, msg)
	if err == nil {
		t.Fatal("Exchange() succeeded, want status error")
	}

	status, ok := mailbox.AsStatus(err)
	if !ok {
		t.Fatalf("AsStatus(%v) found no status", err)
	}
	if status != mailbox.StatusInvalidArgument {
		t.Errorf("status = %v, want StatusInvalidArgument", status)
	}
}

func TestExchangeUnknownMessage(t *testing.T) {
	platform := smusim.NewPlatform(1)
	platform.SMU(0).InterfaceVersion = 1
	engine := instantEngine()

	msg := &mailbox.Message{ID: mailbox.MsgGetDDRBandwidth, Response: make([]uint32, 1)}
	err := engine.Exchange(platform.Device(0, 0), 0, msg)

	status, ok := mailbox.AsStatus(err)
	if !ok {
		t.Fatalf("AsStatus(%v) found no status", err)
	}
	if status != mailbox.StatusInvalidMessageID {
		t.Errorf("status = %v, want StatusInvalidMessageID", status)
	}
}

func TestExchangeRejectsOversizedMessages(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()
	smu := platform.SMU(0)

	tests := []struct {
		name string
		msg  *mailbox.Message
	}{
		{"too many args", &mailbox.Message{ID: mailbox.MsgTestMessage, Args: make([]uint32, 9)}},
		{"too many response words", &mailbox.Message{ID: mailbox.MsgTestMessage, Response: make([]uint32, 9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := engine.Exchange(platform.Device(0, 0), 0, tt.msg); err == nil {
				t.Error("Exchange() succeeded, want error")
			}
			if smu.Executed != 0 {
				t.Errorf("firmware executed %d messages, want 0", smu.Executed)
			}
		})
	}
}

func TestExchangeConfigFailure(t *testing.T) {
	platform := smusim.NewPlatform(1)
	engine := instantEngine()

	broken := errors.New("config access failed")
	platform.Device(0, 0).FailConfig = broken

	msg := &mailbox.Message{ID: mailbox.MsgTestMessage, Args: []uint32{1}, Response: make([]uint32, 1)}
	if err := engine.Exchange(platform.Device(0, 0), 0, msg); !errors.Is(err, broken) {
		t.Errorf("Exchange() error = %v, want wrapped %v", err, broken)
	}
}

func TestExchangeLogging(t *testing.T) {
	platform := smusim.NewPlatform(1)
	logger := &captureLogger{}
	engine := &mailbox.Engine{
		Logger:   logger,
		ClientID: "test-client",
		Sleep:    func(time.Duration) {},
	}

	msg := &mailbox.Message{ID: mailbox.MsgTestMessage, Args: []uint32{7}, Response: make([]uint32, 1)}
	if err := engine.Exchange(platform.Device(0, 1), 1, msg); err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}

	events := logger.byLayer(log.LayerMailbox)
	if len(events) != 1 {
		t.Fatalf("captured %d mailbox events, want 1", len(events))
	}
	ev := events[0]
	if ev.ClientID != "test-client" {
		t.Errorf("ClientID = %q, want test-client", ev.ClientID)
	}
	if ev.Socket != 1 {
		t.Errorf("Socket = %d, want 1", ev.Socket)
	}
	mb := ev.Mailbox
	if mb == nil {
		t.Fatal("event has no mailbox payload")
	}
	if mb.MessageID != uint32(mailbox.MsgTestMessage) {
		t.Errorf("MessageID = %d, want %d", mb.MessageID, mailbox.MsgTestMessage)
	}
	if mb.Name != "TestMessage" {
		t.Errorf("Name = %q, want TestMessage", mb.Name)
	}
	if len(mb.Args) != 1 || mb.Args[0] != 7 {
		t.Errorf("Args = %v, want [7]", mb.Args)
	}
	if mb.Status != uint32(mailbox.StatusOK) {
		t.Errorf("Status = %#x, want OK", mb.Status)
	}
	if len(mb.Response) != 1 || mb.Response[0] != 8 {
		t.Errorf("Response = %v, want [8]", mb.Response)
	}
	if mb.Polls < 1 {
		t.Errorf("Polls = %d, want at least 1", mb.Polls)
	}

	// Register accesses are captured too.
	if regs := logger.byLayer(log.LayerRegister); len(regs) == 0 {
		t.Error("no register events captured")
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		id   mailbox.ID
		want string
	}{
		{mailbox.MsgTestMessage, "TestMessage"},
		{mailbox.MsgGetDDRBandwidth, "GetDDRBandwidth"},
		{mailbox.ID(0x13), "Message(0x13)"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID(%d).String() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status mailbox.Status
		want   string
	}{
		{mailbox.StatusNotReady, "NotReady"},
		{mailbox.StatusOK, "OK"},
		{mailbox.StatusInvalidMessageID, "InvalidMessageID"},
		{mailbox.StatusInvalidArgument, "InvalidArgument"},
		{mailbox.Status(0x42), "Status(0x42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%#x).String() = %q, want %q", uint32(tt.status), got, tt.want)
		}
	}
}
