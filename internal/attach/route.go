/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package attach

import "strings"

// WebSocketProxyTypeName is the handler type registered by the Node.js tools
// debugger WebSocket proxy. Matching is exact and case sensitive on the
// substring before the first comma of the declared handler type.
const WebSocketProxyTypeName = "Microsoft.NodejsTools.Debugger.WebSocketProxy"

// HandlerRoute is a single handler registration from a site configuration
// document: a route path mapped to a server-side handler type.
type HandlerRoute struct {
	// Path is the route path the handler is mounted on.
	Path string

	// TypeName is the declared handler type, typically an assembly-qualified
	// name such as "Namespace.Type, Assembly, Version=...".
	TypeName string
}

// SelectProxyRoute returns the first handler registration (in document order)
// whose declared type's first comma-separated component, trimmed of
// whitespace, equals typeName. A missing registration is a legitimate
// "proxy not configured" outcome, not an error.
func SelectProxyRoute(routes []HandlerRoute, typeName string) (HandlerRoute, bool) {
	for _, route := range routes {
		declared, _, _ := strings.Cut(route.TypeName, ",")
		if strings.TrimSpace(declared) == typeName {
			return route, true
		}
	}
	return HandlerRoute{}, false
}
