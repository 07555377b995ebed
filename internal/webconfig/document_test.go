/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package webconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/nodeattach/internal/attach"
)

const sampleWebConfig = `<?xml version="1.0" encoding="utf-8"?>
<configuration>
  <system.webServer>
    <handlers>
      <add name="NodejsHandler" path="app.js" verb="*"
          type="Microsoft.NodejsTools.NodeHandler, Microsoft.NodejsTools.WebRole" />
      <add name="NtvsDebugProxy" path="ntvs-debug-proxy/9c9ae1a2" verb="*"
          type="Microsoft.NodejsTools.Debugger.WebSocketProxy, Microsoft.NodejsTools.WebRole" />
      <add name="StaticFile" path="*" verb="*" modules="StaticFileModule" resourceType="Either" />
    </handlers>
  </system.webServer>
</configuration>`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleWebConfig))

	require.NoError(t, err)
	assert.Len(t, doc.WebServer.Handlers.Entries, 3)
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse([]byte("<configuration><system.webServer>"))

	assert.ErrorIs(t, err, attach.ErrMalformedDocument)
}

func TestHandlerRoutes_PreservesDocumentOrder(t *testing.T) {
	doc, err := Parse([]byte(sampleWebConfig))
	require.NoError(t, err)

	routes := doc.HandlerRoutes()

	require.Len(t, routes, 3)
	assert.Equal(t, "app.js", routes[0].Path)
	assert.Equal(t, "ntvs-debug-proxy/9c9ae1a2", routes[1].Path)
	// Handlers without a type attribute still occupy their slot.
	assert.Equal(t, "*", routes[2].Path)
	assert.Empty(t, routes[2].TypeName)
}

func TestExtractProxyPath(t *testing.T) {
	doc, err := Parse([]byte(sampleWebConfig))
	require.NoError(t, err)

	path, found := ExtractProxyPath(doc)

	require.True(t, found)
	assert.Equal(t, "ntvs-debug-proxy/9c9ae1a2", path)
}

func TestExtractProxyPath_NoProxyHandler(t *testing.T) {
	doc, err := Parse([]byte(`<configuration>
		<system.webServer>
			<handlers>
				<add name="NodejsHandler" path="app.js"
					type="Microsoft.NodejsTools.NodeHandler, Microsoft.NodejsTools.WebRole" />
			</handlers>
		</system.webServer>
	</configuration>`))
	require.NoError(t, err)

	_, found := ExtractProxyPath(doc)

	assert.False(t, found)
}

func TestExtractProxyPath_EmptyDocument(t *testing.T) {
	doc, err := Parse([]byte(`<configuration />`))
	require.NoError(t, err)

	_, found := ExtractProxyPath(doc)

	assert.False(t, found)
}
