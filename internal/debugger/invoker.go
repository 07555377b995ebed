/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/google/uuid"

	"github.com/microsoft/nodeattach/internal/attach"
)

// DefaultHandshakeTimeout bounds the initialize/attach exchange with the
// debug adapter.
const DefaultHandshakeTimeout = 30 * time.Second

// ErrInvalidAdapterConfig is returned when the debug adapter configuration is invalid.
var ErrInvalidAdapterConfig = errors.New("invalid debug adapter configuration: Args must have at least one element")

// EnvVar is a name/value pair added to the adapter process environment.
type EnvVar struct {
	Name  string
	Value string
}

// AdapterConfig describes how to launch the debug adapter process.
type AdapterConfig struct {
	// Args is the adapter command line; Args[0] is the executable.
	Args []string

	// Env contains additional environment variables for the adapter process.
	Env []EnvVar

	// HandshakeTimeout bounds the initialize/attach exchange.
	// Defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// SkipProbe disables the websocket reachability probe performed before
	// the adapter is launched.
	SkipProbe bool
}

// attachArguments is the attach request payload handed to the debug adapter.
type attachArguments struct {
	WebSocketAddress string `json:"websocketAddress"`
	EngineID         string `json:"engineId"`
	ProcessToken     string `json:"processToken"`
}

// DAPInvoker attaches the host debugger to a remote endpoint by launching a
// debug adapter process and driving the Debug Adapter Protocol initialize and
// attach requests. It implements attach.AttachInvoker.
type DAPInvoker struct {
	config AdapterConfig
	log    logr.Logger
	seq    atomic.Int64

	mu        sync.Mutex
	cmd       *exec.Cmd
	transport Transport
	done      chan struct{}
	waitErr   error
}

// NewDAPInvoker creates an invoker for the given adapter configuration.
func NewDAPInvoker(config AdapterConfig, log logr.Logger) (*DAPInvoker, error) {
	if len(config.Args) == 0 {
		return nil, ErrInvalidAdapterConfig
	}

	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &DAPInvoker{
		config: config,
		log:    log,
		done:   make(chan struct{}),
	}, nil
}

// Attach probes the target endpoint, launches the debug adapter and performs
// the initialize/attach handshake carrying the websocket endpoint. The
// adapter process lifetime is tied to ctx. Failures wrap
// attach.ErrHostAttachFailure.
func (i *DAPInvoker) Attach(ctx context.Context, target attach.AttachTarget, engineID uuid.UUID, processToken string) error {
	if !i.config.SkipProbe {
		if probeErr := ProbeEndpoint(ctx, target); probeErr != nil {
			return fmt.Errorf("%w: %v", attach.ErrHostAttachFailure, probeErr)
		}
		i.log.V(1).Info("Debugger proxy endpoint is reachable", "target", target.String())
	}

	transport, launchErr := i.launchAdapter(ctx)
	if launchErr != nil {
		return fmt.Errorf("%w: %v", attach.ErrHostAttachFailure, launchErr)
	}

	timeout := i.config.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if handshakeErr := i.handshake(handshakeCtx, transport, target, engineID, processToken); handshakeErr != nil {
		_ = transport.Close()
		return fmt.Errorf("%w: %v", attach.ErrHostAttachFailure, handshakeErr)
	}

	i.log.Info("Debug adapter attached", "target", target.String())
	return nil
}

// Wait blocks until the debug adapter process exits or ctx is done.
func (i *DAPInvoker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.done:
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.waitErr
	}
}

// Close closes the transport to the debug adapter.
func (i *DAPInvoker) Close() error {
	i.mu.Lock()
	transport := i.transport
	i.mu.Unlock()

	if transport == nil {
		return nil
	}
	return transport.Close()
}

func (i *DAPInvoker) launchAdapter(ctx context.Context) (Transport, error) {
	args := i.config.Args
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = i.buildEnv()

	stdin, stdinErr := cmd.StdinPipe()
	if stdinErr != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", stdinErr)
	}

	stdout, stdoutErr := cmd.StdoutPipe()
	if stdoutErr != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", stdoutErr)
	}

	stderr, stderrErr := cmd.StderrPipe()
	if stderrErr != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", stderrErr)
	}

	if startErr := cmd.Start(); startErr != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start debug adapter: %w", startErr)
	}

	i.log.Info("Launched debug adapter process",
		"command", args[0],
		"args", args[1:],
		"pid", cmd.Process.Pid)

	go i.logStderr(stderr)
	go func() {
		waitErr := cmd.Wait()
		i.mu.Lock()
		i.waitErr = waitErr
		i.mu.Unlock()
		close(i.done)

		if waitErr != nil {
			i.log.V(1).Info("Debug adapter process exited with error", "error", waitErr)
		} else {
			i.log.V(1).Info("Debug adapter process exited")
		}
	}()

	transport := NewStdioTransport(stdout, stdin)

	i.mu.Lock()
	i.cmd = cmd
	i.transport = transport
	i.mu.Unlock()

	return transport, nil
}

func (i *DAPInvoker) handshake(ctx context.Context, transport Transport, target attach.AttachTarget, engineID uuid.UUID, processToken string) error {
	initializeReq := &dap.InitializeRequest{
		Request: i.newRequest("initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:        "nodeattach",
			ClientName:      "Node.js remote attach",
			AdapterID:       "node",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
			PathFormat:      "path",
		},
	}
	if writeErr := transport.WriteMessage(initializeReq); writeErr != nil {
		return writeErr
	}

	if respErr := i.awaitInitializeResponse(ctx, transport); respErr != nil {
		return respErr
	}

	arguments, marshalErr := json.Marshal(attachArguments{
		WebSocketAddress: target.String(),
		EngineID:         engineID.String(),
		ProcessToken:     processToken,
	})
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize attach arguments: %w", marshalErr)
	}

	attachReq := &dap.AttachRequest{
		Request:   i.newRequest("attach"),
		Arguments: json.RawMessage(arguments),
	}
	if writeErr := transport.WriteMessage(attachReq); writeErr != nil {
		return writeErr
	}

	return i.awaitAttachResponse(ctx, transport)
}

func (i *DAPInvoker) awaitInitializeResponse(ctx context.Context, transport Transport) error {
	for {
		msg, readErr := i.awaitMessage(ctx, transport)
		if readErr != nil {
			return readErr
		}

		switch m := msg.(type) {
		case *dap.InitializeResponse:
			if !m.Success {
				return fmt.Errorf("debug adapter rejected initialize: %s", m.Message)
			}
			return nil
		case *dap.ErrorResponse:
			return fmt.Errorf("debug adapter reported an error during initialize: %s", m.Message)
		default:
			i.log.V(1).Info("Ignoring message during initialize", "seq", m.GetSeq())
		}
	}
}

func (i *DAPInvoker) awaitAttachResponse(ctx context.Context, transport Transport) error {
	for {
		msg, readErr := i.awaitMessage(ctx, transport)
		if readErr != nil {
			return readErr
		}

		switch m := msg.(type) {
		case *dap.AttachResponse:
			if !m.Success {
				return fmt.Errorf("debug adapter refused to attach: %s", m.Message)
			}
			return nil
		case *dap.ErrorResponse:
			return fmt.Errorf("debug adapter reported an error during attach: %s", m.Message)
		default:
			i.log.V(1).Info("Ignoring message during attach", "seq", m.GetSeq())
		}
	}
}

// awaitMessage reads the next message, honoring context cancellation.
func (i *DAPInvoker) awaitMessage(ctx context.Context, transport Transport) (dap.Message, error) {
	type readResult struct {
		msg dap.Message
		err error
	}

	resultCh := make(chan readResult, 1)
	go func() {
		msg, readErr := transport.ReadMessage()
		resultCh <- readResult{msg: msg, err: readErr}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.msg, result.err
	}
}

func (i *DAPInvoker) newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  int(i.seq.Add(1)),
			Type: "request",
		},
		Command: command,
	}
}

func (i *DAPInvoker) buildEnv() []string {
	env := os.Environ()
	for _, e := range i.config.Env {
		env = append(env, e.Name+"="+e.Value)
	}
	return env
}

// logStderr reads and logs stderr from the adapter.
func (i *DAPInvoker) logStderr(stderr interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, 1024)
	for {
		n, readErr := stderr.Read(buf)
		if n > 0 {
			i.log.Info("Debug adapter stderr", "output", string(buf[:n]))
		}
		if readErr != nil {
			return
		}
	}
}
