/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package attach

import (
	"context"
	"net/url"

	"github.com/google/uuid"
)

// SelectionResolver reports the remote site the user currently has selected.
// The host-specific selection mechanics (IDE tree nodes, UI state) live
// entirely behind this interface.
type SelectionResolver interface {
	// CurrentSelection returns the selected site, or false when no valid
	// site is selected.
	CurrentSelection() (SiteReference, bool)
}

// PublishSettings is a parsed publish-settings document.
type PublishSettings interface {
	// FTPProfile returns the first FTP-method publish profile in the document.
	// It returns an error wrapping ErrMalformedDocument when no FTP profile
	// exists or a required credential field is empty.
	FTPProfile() (PublishProfile, error)
}

// SettingsFetcher retrieves the publish-settings document for a site.
type SettingsFetcher interface {
	FetchPublishSettings(ctx context.Context, subscriptionID string, siteURI *url.URL) (PublishSettings, error)
}

// SiteConfiguration is a parsed site configuration document.
type SiteConfiguration interface {
	// HandlerRoutes returns the handler registrations in document order.
	HandlerRoutes() []HandlerRoute
}

// ConfigFetcher retrieves and parses the site configuration file using the
// credentials from a publish profile.
type ConfigFetcher interface {
	FetchSiteConfig(ctx context.Context, profile PublishProfile) (SiteConfiguration, error)
}

// AttachInvoker asks the host debugger to attach to the given WebSocket endpoint.
// This is the only workflow side effect with externally observable consequences.
type AttachInvoker interface {
	Attach(ctx context.Context, target AttachTarget, engineID uuid.UUID, processToken string) error
}

// Subscription is a directory entry for a subscription.
type Subscription struct {
	ID   string
	Name string
}

// WebSpace is a directory entry for a web space within a subscription.
type WebSpace struct {
	Name      string
	GeoRegion string
}

// Site is a directory entry for a hosted site within a web space.
type Site struct {
	Name      string
	WebSpace  string
	HostNames []string
}

// SiteLocation is the internal {web space, site name} pair for a site URI,
// needed to build the publish-settings request URL.
type SiteLocation struct {
	WebSpace string
	Name     string
}

// DirectoryService maps subscriptions and site URIs to the directory entries
// the management endpoints operate on.
type DirectoryService interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	ListWebSpaces(ctx context.Context, subscriptionID string) ([]WebSpace, error)
	ListSites(ctx context.Context, subscriptionID string, webSpace string) ([]Site, error)
	ResolveSite(ctx context.Context, subscriptionID string, siteURI *url.URL) (SiteLocation, error)
}
