/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package webconfig

import (
	"encoding/xml"
	"fmt"

	"github.com/microsoft/nodeattach/internal/attach"
)

// SiteConfigFileName is the fixed name of the site configuration file
// fetched from the site content root.
const SiteConfigFileName = "web.config"

// Document is a parsed site configuration file. Handler registrations are
// kept in document order.
type Document struct {
	XMLName   xml.Name `xml:"configuration"`
	WebServer struct {
		Handlers struct {
			Entries []handlerEntryXML `xml:"add"`
		} `xml:"handlers"`
	} `xml:"system.webServer"`
}

type handlerEntryXML struct {
	Name string `xml:"name,attr"`
	Path string `xml:"path,attr"`
	Type string `xml:"type,attr"`
}

// Parse parses the raw bytes of a site configuration file.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if unmarshalErr := xml.Unmarshal(data, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", attach.ErrMalformedDocument, SiteConfigFileName, unmarshalErr)
	}
	return &doc, nil
}

// HandlerRoutes returns the handler registrations in document order.
func (d *Document) HandlerRoutes() []attach.HandlerRoute {
	routes := make([]attach.HandlerRoute, 0, len(d.WebServer.Handlers.Entries))
	for _, entry := range d.WebServer.Handlers.Entries {
		routes = append(routes, attach.HandlerRoute{
			Path:     entry.Path,
			TypeName: entry.Type,
		})
	}
	return routes
}

// ExtractProxyPath returns the route path of the debugger WebSocket proxy
// handler, or false when the site has no such registration.
func ExtractProxyPath(doc attach.SiteConfiguration) (string, bool) {
	route, found := attach.SelectProxyRoute(doc.HandlerRoutes(), attach.WebSocketProxyTypeName)
	if !found {
		return "", false
	}
	return route.Path, true
}
