/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package attach

import (
	"net/url"
	"strings"
)

// SiteReference identifies the remote web site targeted by an attach attempt.
// Values are immutable and live only for the duration of one attempt.
type SiteReference struct {
	// URI is the absolute URI of the site.
	URI *url.URL

	// SubscriptionID is the subscription the site belongs to.
	SubscriptionID string
}

func (s SiteReference) String() string {
	if s.URI == nil {
		return ""
	}
	return s.URI.String()
}

// PublishProfile carries the FTP deployment credentials for a site,
// parsed from its publish-settings document.
type PublishProfile struct {
	// PublishURL is the FTP URL of the site content root.
	PublishURL string

	// UserName is the FTP user name.
	UserName string

	// Password is the FTP password.
	Password string
}

// AttachTarget is the WebSocket endpoint the debugger connects to.
// It is constructed just before invoking attach and never persisted.
type AttachTarget struct {
	// Scheme is "ws" or "wss", derived from the site URI scheme.
	Scheme string

	// Host is the site host (including port, if any).
	Host string

	// Path is the debugger proxy route path, always with a leading slash.
	Path string
}

// URL returns the target as a URL value.
func (t AttachTarget) URL() *url.URL {
	return &url.URL{
		Scheme: t.Scheme,
		Host:   t.Host,
		Path:   t.Path,
	}
}

func (t AttachTarget) String() string {
	return t.URL().String()
}

// WebSocketScheme maps a site URI scheme to the corresponding WebSocket scheme.
// The mapping is total: http becomes ws, https becomes wss, and any other
// scheme is preserved unchanged rather than defaulted.
func WebSocketScheme(scheme string) string {
	switch scheme {
	case "http":
		return "ws"
	case "https":
		return "wss"
	default:
		return scheme
	}
}

// NewAttachTarget builds the WebSocket attach target for a site and the
// debugger proxy route path extracted from its configuration.
func NewAttachTarget(site SiteReference, proxyPath string) AttachTarget {
	if !strings.HasPrefix(proxyPath, "/") {
		proxyPath = "/" + proxyPath
	}

	return AttachTarget{
		Scheme: WebSocketScheme(site.URI.Scheme),
		Host:   site.URI.Host,
		Path:   proxyPath,
	}
}
