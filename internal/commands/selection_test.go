package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsSelectionResolver(t *testing.T) {
	tests := []struct {
		name                 string
		rawURI               string
		subscriptionID       string
		subscriptionOptional bool
		wantSelected         bool
	}{
		{
			name:           "uri and subscription",
			rawURI:         "https://mysite.azurewebsites.net/",
			subscriptionID: "sub-1",
			wantSelected:   true,
		},
		{
			name:                 "uri without subscription when optional",
			rawURI:               "https://mysite.azurewebsites.net/",
			subscriptionOptional: true,
			wantSelected:         true,
		},
		{
			name:         "uri without subscription",
			rawURI:       "https://mysite.azurewebsites.net/",
			wantSelected: false,
		},
		{
			name:           "relative uri",
			rawURI:         "mysite.azurewebsites.net",
			subscriptionID: "sub-1",
			wantSelected:   false,
		},
		{
			name:           "empty uri",
			rawURI:         "",
			subscriptionID: "sub-1",
			wantSelected:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resolver := newArgsSelectionResolver(test.rawURI, test.subscriptionID, test.subscriptionOptional)

			site, selected := resolver.CurrentSelection()

			assert.Equal(t, test.wantSelected, selected)
			if test.wantSelected {
				require.NotNil(t, site.URI)
				assert.Equal(t, test.rawURI, site.URI.String())
			}
		})
	}
}
