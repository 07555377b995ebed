package commands

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/microsoft/nodeattach/internal/attach"
	"github.com/microsoft/nodeattach/internal/azure"
)

type sitesOptions struct {
	subscriptionID string
	endpoint       string
}

func NewSitesCommand(log logr.Logger) (*cobra.Command, error) {
	opts := &sitesOptions{}

	sitesCmd := &cobra.Command{
		Use:   "sites",
		Short: "Lists the remote sites visible to the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSites(cmd, log, opts)
		},
	}

	flags := sitesCmd.Flags()
	flags.StringVarP(&opts.subscriptionID, "subscription", "s", "", "Limit the listing to one subscription")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Management endpoint override")

	return sitesCmd, nil
}

func runSites(cmd *cobra.Command, log logr.Logger, opts *sitesOptions) error {
	ctx := cmd.Context()
	log = log.WithName("sites")

	credential, credentialErr := azure.CredentialFromEnvironment()
	if credentialErr != nil {
		return credentialErr
	}

	client, clientErr := azure.NewManagementClient(azure.ManagementClientConfig{
		Endpoint:   opts.endpoint,
		Credential: credential,
		Logger:     log,
	})
	if clientErr != nil {
		return clientErr
	}

	var subscriptions []attach.Subscription
	if opts.subscriptionID != "" {
		subscriptions = []attach.Subscription{{ID: opts.subscriptionID}}
	} else {
		var listErr error
		subscriptions, listErr = client.ListSubscriptions(ctx)
		if listErr != nil {
			return listErr
		}
	}

	out := cmd.OutOrStdout()
	for _, subscription := range subscriptions {
		spaces, spacesErr := client.ListWebSpaces(ctx, subscription.ID)
		if spacesErr != nil {
			return spacesErr
		}

		for _, space := range spaces {
			sites, sitesErr := client.ListSites(ctx, subscription.ID, space.Name)
			if sitesErr != nil {
				return sitesErr
			}

			for _, site := range sites {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					subscription.ID, space.Name, site.Name, strings.Join(site.HostNames, ","))
			}
		}
	}

	return nil
}
