/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package debugger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/nodeattach/internal/attach"
	"github.com/microsoft/nodeattach/pkg/testutil"
)

// fakeAdapter drives the remote end of the DAP handshake the way a debug
// adapter process would, recording the attach arguments it receives.
type fakeAdapter struct {
	transport Transport

	refuseAttach bool
	attachArgs   json.RawMessage
	done         chan error
}

func newFakeAdapter(transport Transport) *fakeAdapter {
	return &fakeAdapter{
		transport: transport,
		done:      make(chan error, 1),
	}
}

func (a *fakeAdapter) serve() {
	a.done <- a.run()
}

func (a *fakeAdapter) run() error {
	for {
		msg, readErr := a.transport.ReadMessage()
		if readErr != nil {
			return readErr
		}

		switch m := msg.(type) {
		case *dap.InitializeRequest:
			writeErr := a.transport.WriteMessage(&dap.InitializeResponse{
				Response: a.newResponse(m.Seq, "initialize", true, ""),
			})
			if writeErr != nil {
				return writeErr
			}
		case *dap.AttachRequest:
			a.attachArgs = m.Arguments
			message := ""
			if a.refuseAttach {
				message = "target endpoint refused the connection"
			}
			return a.transport.WriteMessage(&dap.AttachResponse{
				Response: a.newResponse(m.Seq, "attach", !a.refuseAttach, message),
			})
		}
	}
}

func (a *fakeAdapter) newResponse(requestSeq int, command string, success bool, message string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: requestSeq, Type: "response"},
		RequestSeq:      requestSeq,
		Command:         command,
		Success:         success,
		Message:         message,
	}
}

func newTestInvoker(t *testing.T) *DAPInvoker {
	t.Helper()

	invoker, err := NewDAPInvoker(AdapterConfig{
		Args:      []string{"node", "dapDebugServer.js"},
		SkipProbe: true,
	}, testutil.NewLogForTesting(t.Name()))
	require.NoError(t, err)
	return invoker
}

func testAttachTarget() attach.AttachTarget {
	return attach.AttachTarget{
		Scheme: "wss",
		Host:   "site.example",
		Path:   "/ntvs-debug-proxy/9c9ae1a2",
	}
}

func TestNewDAPInvoker_RequiresArgs(t *testing.T) {
	_, err := NewDAPInvoker(AdapterConfig{}, logr.Discard())
	assert.ErrorIs(t, err, ErrInvalidAdapterConfig)
}

func TestHandshake_CarriesAttachArguments(t *testing.T) {
	local, remote := newTransportPair(t)
	adapter := newFakeAdapter(remote)
	go adapter.serve()

	invoker := newTestInvoker(t)
	engineID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handshakeErr := invoker.handshake(ctx, local, testAttachTarget(), engineID, "token-1")
	require.NoError(t, handshakeErr)
	require.NoError(t, <-adapter.done)

	var args attachArguments
	require.NoError(t, json.Unmarshal(adapter.attachArgs, &args))
	assert.Equal(t, "wss://site.example/ntvs-debug-proxy/9c9ae1a2", args.WebSocketAddress)
	assert.Equal(t, engineID.String(), args.EngineID)
	assert.Equal(t, "token-1", args.ProcessToken)
}

func TestHandshake_AdapterRefusesAttach(t *testing.T) {
	local, remote := newTransportPair(t)
	adapter := newFakeAdapter(remote)
	adapter.refuseAttach = true
	go adapter.serve()

	invoker := newTestInvoker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handshakeErr := invoker.handshake(ctx, local, testAttachTarget(), uuid.New(), "token-1")
	require.Error(t, handshakeErr)
	assert.Contains(t, handshakeErr.Error(), "refused")
}

func TestHandshake_IgnoresEventsWhileWaiting(t *testing.T) {
	local, remote := newTransportPair(t)

	go func() {
		msg, readErr := remote.ReadMessage()
		if readErr != nil {
			return
		}
		initialize := msg.(*dap.InitializeRequest)

		// An event arriving before the response must not derail the handshake.
		_ = remote.WriteMessage(&dap.OutputEvent{
			Event: dap.Event{
				ProtocolMessage: dap.ProtocolMessage{Seq: 100, Type: "event"},
				Event:           "output",
			},
			Body: dap.OutputEventBody{Category: "console", Output: "starting\n"},
		})
		_ = remote.WriteMessage(&dap.InitializeResponse{
			Response: dap.Response{
				ProtocolMessage: dap.ProtocolMessage{Seq: 101, Type: "response"},
				RequestSeq:      initialize.Seq,
				Command:         "initialize",
				Success:         true,
			},
		})

		if _, readErr = remote.ReadMessage(); readErr != nil {
			return
		}
		_ = remote.WriteMessage(&dap.AttachResponse{
			Response: dap.Response{
				ProtocolMessage: dap.ProtocolMessage{Seq: 102, Type: "response"},
				Command:         "attach",
				Success:         true,
			},
		})
	}()

	invoker := newTestInvoker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handshakeErr := invoker.handshake(ctx, local, testAttachTarget(), uuid.New(), "token-1")
	assert.NoError(t, handshakeErr)
}

func TestHandshake_HonorsContextCancellation(t *testing.T) {
	local, remote := newTransportPair(t)

	// The remote side accepts the request but never answers.
	go func() {
		_, _ = remote.ReadMessage()
	}()

	invoker := newTestInvoker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	handshakeErr := invoker.handshake(ctx, local, testAttachTarget(), uuid.New(), "token-1")
	assert.ErrorIs(t, handshakeErr, context.DeadlineExceeded)
}
