/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package azure

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/microsoft/nodeattach/internal/attach"
	"github.com/microsoft/nodeattach/pkg/resiliency"
)

const (
	// DefaultManagementEndpoint is the subscription management service endpoint.
	DefaultManagementEndpoint = "https://management.core.windows.net"

	managementAPIVersion = "2014-04-01"
	msVersionHeader      = "x-ms-version"

	defaultRequestTimeout = 30 * time.Second
)

// ManagementClientConfig configures a ManagementClient. Credential is required.
type ManagementClientConfig struct {
	// Endpoint overrides the management service endpoint. Defaults to
	// DefaultManagementEndpoint.
	Endpoint string

	// Credential authenticates management requests.
	Credential Credential

	// Logger for client operations.
	Logger logr.Logger
}

// ManagementClient talks to the subscription management endpoint: the
// subscription/site directory and per-site publish-settings documents.
// It implements both attach.DirectoryService and attach.SettingsFetcher.
type ManagementClient struct {
	endpoint   string
	credential Credential
	httpClient *http.Client
	log        logr.Logger
}

// NewManagementClient creates a management client. An error wrapping
// attach.ErrAuthenticationUnavailable is returned when no credential is given.
func NewManagementClient(cfg ManagementClientConfig) (*ManagementClient, error) {
	if cfg.Credential == nil {
		return nil, fmt.Errorf("%w: management client requires a credential", attach.ErrAuthenticationUnavailable)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultManagementEndpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	client := &http.Client{
		Timeout: defaultRequestTimeout,
	}
	if tlsConfig := cfg.Credential.TLSClientConfig(); tlsConfig != nil {
		client.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
			Proxy:           http.ProxyFromEnvironment,
		}
	}

	return &ManagementClient{
		endpoint:   endpoint,
		credential: cfg.Credential,
		httpClient: client,
		log:        log,
	}, nil
}

// ListSubscriptions returns the subscriptions visible to the credential.
func (c *ManagementClient) ListSubscriptions(ctx context.Context) ([]attach.Subscription, error) {
	var doc subscriptionsXML
	if fetchErr := c.getXML(ctx, c.endpoint+"/subscriptions", &doc); fetchErr != nil {
		return nil, fetchErr
	}

	subscriptions := make([]attach.Subscription, 0, len(doc.Subscriptions))
	for _, sub := range doc.Subscriptions {
		subscriptions = append(subscriptions, attach.Subscription{
			ID:   sub.ID,
			Name: sub.Name,
		})
	}
	return subscriptions, nil
}

// ListWebSpaces returns the web spaces in a subscription.
func (c *ManagementClient) ListWebSpaces(ctx context.Context, subscriptionID string) ([]attach.WebSpace, error) {
	requestURL := fmt.Sprintf("%s/%s/services/WebSpaces", c.endpoint, url.PathEscape(subscriptionID))

	var doc webSpacesXML
	if fetchErr := c.getXML(ctx, requestURL, &doc); fetchErr != nil {
		return nil, fetchErr
	}

	spaces := make([]attach.WebSpace, 0, len(doc.WebSpaces))
	for _, space := range doc.WebSpaces {
		spaces = append(spaces, attach.WebSpace{
			Name:      space.Name,
			GeoRegion: space.GeoRegion,
		})
	}
	return spaces, nil
}

// ListSites returns the sites in a web space.
func (c *ManagementClient) ListSites(ctx context.Context, subscriptionID string, webSpace string) ([]attach.Site, error) {
	requestURL := fmt.Sprintf("%s/%s/services/WebSpaces/%s/sites",
		c.endpoint, url.PathEscape(subscriptionID), url.PathEscape(webSpace))

	var doc sitesXML
	if fetchErr := c.getXML(ctx, requestURL, &doc); fetchErr != nil {
		return nil, fetchErr
	}

	sites := make([]attach.Site, 0, len(doc.Sites))
	for _, site := range doc.Sites {
		sites = append(sites, attach.Site{
			Name:      site.Name,
			WebSpace:  webSpace,
			HostNames: site.HostNames,
		})
	}
	return sites, nil
}

// ResolveSite finds the {web space, site name} pair whose host names include
// the host of the given site URI.
func (c *ManagementClient) ResolveSite(ctx context.Context, subscriptionID string, siteURI *url.URL) (attach.SiteLocation, error) {
	host := siteURI.Hostname()

	spaces, spacesErr := c.ListWebSpaces(ctx, subscriptionID)
	if spacesErr != nil {
		return attach.SiteLocation{}, spacesErr
	}

	for _, space := range spaces {
		sites, sitesErr := c.ListSites(ctx, subscriptionID, space.Name)
		if sitesErr != nil {
			return attach.SiteLocation{}, sitesErr
		}

		for _, site := range sites {
			for _, hostName := range site.HostNames {
				if strings.EqualFold(hostName, host) {
					return attach.SiteLocation{WebSpace: space.Name, Name: site.Name}, nil
				}
			}
		}
	}

	return attach.SiteLocation{}, fmt.Errorf("%w: site '%s' was not found in subscription %s",
		attach.ErrSelectionUnavailable, host, subscriptionID)
}

// FetchPublishSettings resolves the site within the subscription directory
// and retrieves its publish-settings document.
func (c *ManagementClient) FetchPublishSettings(ctx context.Context, subscriptionID string, siteURI *url.URL) (attach.PublishSettings, error) {
	location, resolveErr := c.ResolveSite(ctx, subscriptionID, siteURI)
	if resolveErr != nil {
		return nil, resolveErr
	}

	requestURL := fmt.Sprintf("%s/%s/services/WebSpaces/%s/sites/%s/publishxml",
		c.endpoint, url.PathEscape(subscriptionID), url.PathEscape(location.WebSpace), url.PathEscape(location.Name))

	c.log.V(1).Info("Fetching publish settings",
		"subscription", subscriptionID,
		"webSpace", location.WebSpace,
		"site", location.Name)

	data, fetchErr := c.get(ctx, requestURL)
	if fetchErr != nil {
		return nil, fetchErr
	}

	return ParsePublishSettings(data)
}

// getXML fetches a management resource and unmarshals the XML response body.
func (c *ManagementClient) getXML(ctx context.Context, requestURL string, out any) error {
	data, fetchErr := c.get(ctx, requestURL)
	if fetchErr != nil {
		return fetchErr
	}

	if unmarshalErr := xml.Unmarshal(data, out); unmarshalErr != nil {
		return fmt.Errorf("%w: failed to parse response from %s: %v", attach.ErrMalformedDocument, requestURL, unmarshalErr)
	}
	return nil
}

// get issues an authenticated GET, retrying transient transport failures.
func (c *ManagementClient) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create management request: %w", reqErr)
	}
	req.Header.Set(msVersionHeader, managementAPIVersion)

	if applyErr := c.credential.Apply(req); applyErr != nil {
		return nil, fmt.Errorf("%w: %v", attach.ErrAuthenticationUnavailable, applyErr)
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
	resp, doErr := resiliency.RetryGetWhen(ctx, b,
		func(err error) bool {
			// Only raw transport failures are worth retrying; everything else
			// (auth, parse, bad status) is handled below.
			return !errors.Is(err, context.Canceled)
		},
		func() (*http.Response, error) {
			return c.httpClient.Do(req)
		})
	if doErr != nil {
		return nil, fmt.Errorf("%w: request to %s failed: %v", attach.ErrNetworkFailure, requestURL, doErr)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: management endpoint rejected the credential (HTTP %d)",
			attach.ErrAuthenticationUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected HTTP status %d from %s",
			attach.ErrNetworkFailure, resp.StatusCode, requestURL)
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read response from %s: %v", attach.ErrNetworkFailure, requestURL, readErr)
	}
	return data, nil
}

type subscriptionsXML struct {
	XMLName       xml.Name `xml:"Subscriptions"`
	Subscriptions []struct {
		ID   string `xml:"SubscriptionID"`
		Name string `xml:"SubscriptionName"`
	} `xml:"Subscription"`
}

type webSpacesXML struct {
	XMLName   xml.Name `xml:"WebSpaces"`
	WebSpaces []struct {
		Name      string `xml:"Name"`
		GeoRegion string `xml:"GeoRegion"`
	} `xml:"WebSpace"`
}

type sitesXML struct {
	XMLName xml.Name `xml:"Sites"`
	Sites   []struct {
		Name      string   `xml:"Name"`
		HostNames []string `xml:"HostNames>string"`
	} `xml:"Site"`
}
