package mailbox

import (
	"fmt"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
	"github.com/hsmp-protocol/hsmp-go/pkg/pci"
	"github.com/hsmp-protocol/hsmp-go/pkg/smn"
)

// Mailbox register addresses in the auxiliary register space. All three
// are reached through the mailbox aperture of the socket's first access
// point.
const (
	// RegMessageID is the doorbell register; writing a message id
	// starts execution.
	RegMessageID uint32 = 0x3B10534

	// RegStatus is where the firmware posts the completion status.
	RegStatus uint32 = 0x3B10980

	// RegData is the first of MaxWords argument/response word slots,
	// each 4 bytes apart.
	RegData uint32 = 0x3B109E0
)

// Default poll loop parameters. The worst case exchange blocks for
// DefaultPollBudget * DefaultPollInterval.
const (
	DefaultPollInterval = time.Millisecond
	DefaultPollBudget   = 500
)

// Engine drives mailbox exchanges against a config-space device.
// The zero value uses the default poll parameters, real sleeps, and no
// logging. Engine performs no locking; callers serialize exchanges.
type Engine struct {
	// Logger receives one mailbox-layer event per exchange and
	// register-layer events for each access. Nil disables capture.
	Logger log.Logger

	// ClientID tags emitted events.
	ClientID string

	// PollInterval is the sleep between status polls.
	PollInterval time.Duration

	// PollBudget is the number of status polls before giving up.
	PollBudget int

	// Sleep is called between polls. Tests substitute an instant
	// clock here.
	Sleep func(time.Duration)
}

func (e *Engine) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return DefaultPollInterval
}

func (e *Engine) pollBudget() int {
	if e.PollBudget > 0 {
		return e.PollBudget
	}
	return DefaultPollBudget
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Exchange performs one complete mailbox round trip on dev. On an OK
// status msg.Response is filled in ascending slot order; with a
// zero-length Response no data register is read back. A non-OK status
// is returned as a StatusError; a firmware that never completes within
// the poll budget yields ErrTimeout. Once the doorbell is written the
// poll loop always runs to completion or timeout.
func (e *Engine) Exchange(dev pci.ConfigAccessor, socket int, msg *Message) error {
	if len(msg.Args) > MaxWords {
		return fmt.Errorf("message %s: %d arguments exceed the %d data slots", msg.ID, len(msg.Args), MaxWords)
	}
	if len(msg.Response) > MaxWords {
		return fmt.Errorf("message %s: %d response words exceed the %d data slots", msg.ID, len(msg.Response), MaxWords)
	}

	access := smn.Access{Dev: dev, Logger: e.Logger, ClientID: e.ClientID}
	start := time.Now()

	// Clear any stale completion before arming the next exchange.
	if err := access.Write(smn.Mailbox, RegStatus, uint32(StatusNotReady)); err != nil {
		return e.fail(socket, dev, fmt.Errorf("clearing status register: %w", err))
	}

	for i, arg := range msg.Args {
		addr := RegData + uint32(i)*4
		if err := access.Write(smn.Mailbox, addr, arg); err != nil {
			return e.fail(socket, dev, fmt.Errorf("writing argument %d: %w", i, err))
		}
	}

	if err := access.Write(smn.Mailbox, RegMessageID, uint32(msg.ID)); err != nil {
		return e.fail(socket, dev, fmt.Errorf("writing message id: %w", err))
	}

	status := StatusNotReady
	polls := 0
	for polls < e.pollBudget() {
		e.sleep(e.pollInterval())
		value, err := access.Read(smn.Mailbox, RegStatus)
		if err != nil {
			return e.fail(socket, dev, fmt.Errorf("polling status register: %w", err))
		}
		polls++
		status = Status(value)
		if status != StatusNotReady {
			break
		}
	}

	if status == StatusNotReady {
		e.logExchange(socket, dev, msg, status, polls, time.Since(start))
		return fmt.Errorf("message %s after %d polls: %w", msg.ID, polls, ErrTimeout)
	}

	if status != StatusOK {
		e.logExchange(socket, dev, msg, status, polls, time.Since(start))
		return &StatusError{ID: msg.ID, Status: status}
	}

	for i := range msg.Response {
		addr := RegData + uint32(i)*4
		value, err := access.Read(smn.Mailbox, addr)
		if err != nil {
			return e.fail(socket, dev, fmt.Errorf("reading response word %d: %w", i, err))
		}
		msg.Response[i] = value
	}

	e.logExchange(socket, dev, msg, status, polls, time.Since(start))
	return nil
}

// fail emits an error event for a config-space access failure and
// passes the error through unchanged.
func (e *Engine) fail(socket int, dev pci.ConfigAccessor, err error) error {
	if e.Logger != nil {
		e.Logger.Log(log.Event{
			Timestamp: time.Now(),
			ClientID:  e.ClientID,
			Direction: log.DirectionOut,
			Layer:     log.LayerMailbox,
			Category:  log.CategoryError,
			Socket:    socket,
			Device:    dev.Address(),
			Error: &log.ErrorEventData{
				Layer:   log.LayerMailbox,
				Message: err.Error(),
				Context: "mailbox exchange",
			},
		})
	}
	return err
}

func (e *Engine) logExchange(socket int, dev pci.ConfigAccessor, msg *Message, status Status, polls int, elapsed time.Duration) {
	if e.Logger == nil {
		return
	}

	event := log.Event{
		Timestamp: time.Now(),
		ClientID:  e.ClientID,
		Direction: log.DirectionOut,
		Layer:     log.LayerMailbox,
		Category:  log.CategoryExchange,
		Socket:    socket,
		Device:    dev.Address(),
		Mailbox: &log.MailboxEvent{
			MessageID: uint32(msg.ID),
			Name:      msg.ID.String(),
			Args:      append([]uint32(nil), msg.Args...),
			Status:    uint32(status),
			Polls:     polls,
			Elapsed:   elapsed,
		},
	}
	if status == StatusOK {
		event.Mailbox.Response = append([]uint32(nil), msg.Response...)
	}
	e.Logger.Log(event)
}
