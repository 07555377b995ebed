/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package debugger

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/microsoft/nodeattach/internal/attach"
)

const defaultHandshakeTimeout = 10 * time.Second

// NewWebSocketDialer returns a dialer for connecting to the attach target.
// Secure targets get a TLS configuration for the handshake.
func NewWebSocketDialer(target attach.AttachTarget) *websocket.Dialer {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
	}

	if target.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return dialer
}

// ProbeEndpoint dials the attach target and immediately closes the
// connection, verifying that the debugger proxy is reachable before the
// debug adapter is handed the endpoint.
func ProbeEndpoint(ctx context.Context, target attach.AttachTarget) error {
	dialer := NewWebSocketDialer(target)

	conn, resp, dialErr := dialer.DialContext(ctx, target.String(), nil)
	if dialErr != nil {
		if resp != nil {
			return fmt.Errorf("debugger proxy at %s rejected the connection (HTTP %d): %w", target, resp.StatusCode, dialErr)
		}
		return fmt.Errorf("debugger proxy at %s is not reachable: %w", target, dialErr)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
