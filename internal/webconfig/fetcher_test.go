/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package webconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/nodeattach/internal/attach"
)

func TestResolveConfigLocation(t *testing.T) {
	tests := []struct {
		name           string
		publishURL     string
		wantServerAddr string
		wantFilePath   string
	}{
		{
			name:           "root path",
			publishURL:     "ftp://example/",
			wantServerAddr: "example:21",
			wantFilePath:   "/web.config",
		},
		{
			name:           "no trailing slash",
			publishURL:     "ftp://example",
			wantServerAddr: "example:21",
			wantFilePath:   "/web.config",
		},
		{
			name:           "schemeless with content path",
			publishURL:     "waws-prod-bay-001.ftp.azurewebsites.windows.net/site/wwwroot",
			wantServerAddr: "waws-prod-bay-001.ftp.azurewebsites.windows.net:21",
			wantFilePath:   "/site/wwwroot/web.config",
		},
		{
			name:           "explicit port preserved",
			publishURL:     "ftp://example:2121/site/wwwroot",
			wantServerAddr: "example:2121",
			wantFilePath:   "/site/wwwroot/web.config",
		},
		{
			name:           "trailing slash on content path",
			publishURL:     "ftp://example/site/wwwroot/",
			wantServerAddr: "example:21",
			wantFilePath:   "/site/wwwroot/web.config",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			serverAddr, filePath, err := resolveConfigLocation(test.publishURL)

			require.NoError(t, err)
			assert.Equal(t, test.wantServerAddr, serverAddr)
			assert.Equal(t, test.wantFilePath, filePath)
		})
	}
}

func TestResolveConfigLocation_EmptyPublishURL(t *testing.T) {
	_, _, err := resolveConfigLocation("")

	assert.ErrorIs(t, err, attach.ErrMalformedDocument)
}

func TestFetchSiteConfig_UnreachableServer(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{DialTimeout: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// 192.0.2.0/24 is reserved for documentation and never routed.
	_, err := fetcher.FetchSiteConfig(ctx, attach.PublishProfile{
		PublishURL: "ftp://192.0.2.1/",
		UserName:   "u",
		Password:   "p",
	})

	assert.ErrorIs(t, err, attach.ErrNetworkFailure)
}
