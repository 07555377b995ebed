/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package azure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/nodeattach/internal/attach"
)

const testSubscriptionID = "11111111-2222-3333-4444-555555555555"

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		assertManagementHeaders(t, r)
		writeXML(t, w, `<Subscriptions>
			<Subscription>
				<SubscriptionID>`+testSubscriptionID+`</SubscriptionID>
				<SubscriptionName>Dev Subscription</SubscriptionName>
			</Subscription>
		</Subscriptions>`)
	})
	mux.HandleFunc("/"+testSubscriptionID+"/services/WebSpaces", func(w http.ResponseWriter, r *http.Request) {
		assertManagementHeaders(t, r)
		writeXML(t, w, `<WebSpaces>
			<WebSpace>
				<Name>bayspace</Name>
				<GeoRegion>West US</GeoRegion>
			</WebSpace>
		</WebSpaces>`)
	})
	mux.HandleFunc("/"+testSubscriptionID+"/services/WebSpaces/bayspace/sites", func(w http.ResponseWriter, r *http.Request) {
		assertManagementHeaders(t, r)
		writeXML(t, w, `<Sites>
			<Site>
				<Name>mysite</Name>
				<HostNames>
					<string>mysite.azurewebsites.net</string>
					<string>www.mysite.example</string>
				</HostNames>
			</Site>
		</Sites>`)
	})
	mux.HandleFunc("/"+testSubscriptionID+"/services/WebSpaces/bayspace/sites/mysite/publishxml", func(w http.ResponseWriter, r *http.Request) {
		assertManagementHeaders(t, r)
		writeXML(t, w, samplePublishSettings)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func assertManagementHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, managementAPIVersion, r.Header.Get(msVersionHeader))
	assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
}

func writeXML(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/xml")
	_, err := w.Write([]byte(body))
	assert.NoError(t, err)
}

func newTestClient(t *testing.T, endpoint string) *ManagementClient {
	t.Helper()

	client, err := NewManagementClient(ManagementClientConfig{
		Endpoint:   endpoint,
		Credential: NewTokenCredential("test-token"),
	})
	require.NoError(t, err)
	return client
}

func TestNewManagementClient_RequiresCredential(t *testing.T) {
	_, err := NewManagementClient(ManagementClientConfig{})
	assert.ErrorIs(t, err, attach.ErrAuthenticationUnavailable)
}

func TestListSubscriptions(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	subscriptions, err := client.ListSubscriptions(context.Background())

	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, testSubscriptionID, subscriptions[0].ID)
	assert.Equal(t, "Dev Subscription", subscriptions[0].Name)
}

func TestListWebSpaces(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	spaces, err := client.ListWebSpaces(context.Background(), testSubscriptionID)

	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "bayspace", spaces[0].Name)
	assert.Equal(t, "West US", spaces[0].GeoRegion)
}

func TestListSites(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	sites, err := client.ListSites(context.Background(), testSubscriptionID, "bayspace")

	require.NoError(t, err)
	expected := []attach.Site{{
		Name:      "mysite",
		WebSpace:  "bayspace",
		HostNames: []string{"mysite.azurewebsites.net", "www.mysite.example"},
	}}
	assert.Empty(t, cmp.Diff(expected, sites))
}

func TestResolveSite_MatchesHostNameCaseInsensitively(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	location, err := client.ResolveSite(context.Background(), testSubscriptionID,
		mustParseManagementURL(t, "https://WWW.MySite.Example/"))

	require.NoError(t, err)
	assert.Equal(t, attach.SiteLocation{WebSpace: "bayspace", Name: "mysite"}, location)
}

func TestResolveSite_UnknownHost(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	_, err := client.ResolveSite(context.Background(), testSubscriptionID,
		mustParseManagementURL(t, "https://othersite.example/"))

	assert.ErrorIs(t, err, attach.ErrSelectionUnavailable)
}

func TestFetchPublishSettings(t *testing.T) {
	server := newDirectoryServer(t)
	client := newTestClient(t, server.URL)

	settings, err := client.FetchPublishSettings(context.Background(), testSubscriptionID,
		mustParseManagementURL(t, "https://mysite.azurewebsites.net/"))

	require.NoError(t, err)
	profile, profileErr := settings.FTPProfile()
	require.NoError(t, profileErr)
	assert.Equal(t, "ftp://waws-prod-bay-001.ftp.azurewebsites.windows.net/site/wwwroot", profile.PublishURL)
}

func TestManagementClient_UnauthorizedIsAuthenticationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	_, err := client.ListSubscriptions(context.Background())

	assert.ErrorIs(t, err, attach.ErrAuthenticationUnavailable)
}

func TestManagementClient_ServerErrorIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	_, err := client.ListSubscriptions(context.Background())

	assert.ErrorIs(t, err, attach.ErrNetworkFailure)
}

func TestManagementClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not XML"))
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	_, err := client.ListSubscriptions(context.Background())

	assert.ErrorIs(t, err, attach.ErrMalformedDocument)
}

func mustParseManagementURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, parseErr := url.Parse(raw)
	require.NoError(t, parseErr)
	return parsed
}
