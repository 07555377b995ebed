// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package debugger

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/google/go-dap"
)

// Transport provides DAP message I/O with a debug adapter process.
// Implementations are safe for one reader and one writer goroutine;
// individual reads and writes may not be concurrent with each other.
type Transport interface {
	// ReadMessage reads the next DAP protocol message from the transport.
	// This method blocks until a complete message is available.
	ReadMessage() (dap.Message, error)

	// WriteMessage writes a DAP protocol message to the transport.
	WriteMessage(msg dap.Message) error

	// Close closes the transport, releasing any associated resources.
	// Blocked ReadMessage or WriteMessage calls return with an error.
	Close() error
}

// stdioTransport implements Transport over the adapter's stdin/stdout pipes.
type stdioTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
	stdin  io.WriteCloser
	stdout io.ReadCloser

	// writeMu protects concurrent writes
	writeMu sync.Mutex

	// closed indicates whether the transport has been closed
	closed bool
	mu     sync.Mutex
}

// NewStdioTransport creates a Transport over the adapter process pipes:
// stdout is read from, stdin is written to.
func NewStdioTransport(stdout io.ReadCloser, stdin io.WriteCloser) Transport {
	return &stdioTransport{
		reader: bufio.NewReader(stdout),
		writer: bufio.NewWriter(stdin),
		stdin:  stdin,
		stdout: stdout,
	}
}

func (t *stdioTransport) ReadMessage() (dap.Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	msg, readErr := dap.ReadProtocolMessage(t.reader)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
	}

	return msg, nil
}

func (t *stdioTransport) WriteMessage(msg dap.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	writeErr := dap.WriteProtocolMessage(t.writer, msg)
	if writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}

	flushErr := t.writer.Flush()
	if flushErr != nil {
		return fmt.Errorf("failed to flush DAP message: %w", flushErr)
	}

	return nil
}

func (t *stdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	var errs []error
	if closeErr := t.stdin.Close(); closeErr != nil {
		errs = append(errs, fmt.Errorf("failed to close stdin: %w", closeErr))
	}
	if closeErr := t.stdout.Close(); closeErr != nil {
		errs = append(errs, fmt.Errorf("failed to close stdout: %w", closeErr))
	}

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}
