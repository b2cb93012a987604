// Package log provides structured event capture for the HSMP client.
//
// This package defines the Logger interface and Event types for recording
// activity at each layer of the mailbox stack (register access, mailbox
// exchange, client lifecycle). It is separate from operational logging
// (slog) - event capture provides a complete machine-readable trace of
// every config-space access and mailbox round trip for debugging firmware
// interactions after the fact.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	client := hsmp.New(hsmp.WithLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production diagnosis: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/hsmp/client.hlog")
//	client := hsmp.New(hsmp.WithLogger(fl))
//
//	// Both: use MultiLogger
//	client := hsmp.New(hsmp.WithLogger(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fl,
//	)))
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Register: one indirect index/data access (RegisterEvent)
//   - Mailbox: one complete request/response exchange (MailboxEvent)
//   - Lifecycle: client state transitions (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .hlog extension. The hsmp-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
