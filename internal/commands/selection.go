package commands

import (
	"net/url"

	"github.com/microsoft/nodeattach/internal/attach"
)

// argsSelectionResolver adapts the command line to the workflow's selection
// seam: the site URI argument and subscription flag stand in for the host
// IDE's current selection.
type argsSelectionResolver struct {
	siteURI        *url.URL
	subscriptionID string

	// subscriptionOptional is true when a local publish-settings file makes
	// the subscription directory unnecessary.
	subscriptionOptional bool
}

func newArgsSelectionResolver(rawURI string, subscriptionID string, subscriptionOptional bool) argsSelectionResolver {
	resolver := argsSelectionResolver{
		subscriptionID:       subscriptionID,
		subscriptionOptional: subscriptionOptional,
	}

	siteURI, parseErr := url.Parse(rawURI)
	if parseErr == nil && siteURI.IsAbs() && siteURI.Host != "" {
		resolver.siteURI = siteURI
	}

	return resolver
}

func (r argsSelectionResolver) CurrentSelection() (attach.SiteReference, bool) {
	if r.siteURI == nil {
		return attach.SiteReference{}, false
	}
	if r.subscriptionID == "" && !r.subscriptionOptional {
		return attach.SiteReference{}, false
	}

	return attach.SiteReference{
		URI:            r.siteURI,
		SubscriptionID: r.subscriptionID,
	}, true
}
