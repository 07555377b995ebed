package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/microsoft/nodeattach/internal/attach"
	"github.com/microsoft/nodeattach/internal/azure"
	"github.com/microsoft/nodeattach/internal/debugger"
	"github.com/microsoft/nodeattach/internal/webconfig"
	"github.com/microsoft/nodeattach/pkg/telemetry"
)

type attachOptions struct {
	subscriptionID      string
	publishSettingsPath string
	envFile             string
	endpoint            string
	adapterArgs         []string
	retries             int
	skipProbe           bool
}

func NewAttachCommand(log logr.Logger) (*cobra.Command, error) {
	opts := &attachOptions{}

	attachCmd := &cobra.Command{
		Use:   "attach <site-uri>",
		Short: "Attach the debugger to a Node.js application on a remote site",
		Long: `Attach the debugger to a Node.js application on a remote site.

The site's publish settings are fetched from the subscription management
endpoint (or read from a local file), the site configuration is downloaded
over FTP, and the debugger is attached to the WebSocket proxy route found in
the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd, log, opts, args[0])
		},
	}

	flags := attachCmd.Flags()
	flags.StringVarP(&opts.subscriptionID, "subscription", "s", "", "Subscription the site belongs to")
	flags.StringVar(&opts.publishSettingsPath, "publish-settings", "", "Path to a previously downloaded publish-settings file (bypasses the management endpoint)")
	flags.StringVar(&opts.envFile, "env-file", "", "Env file with credential settings to load before attaching")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Management endpoint override")
	flags.StringSliceVar(&opts.adapterArgs, "adapter", []string{"node", "/usr/lib/node_modules/js-debug/src/dapDebugServer.js"}, "Debug adapter command line")
	flags.IntVar(&opts.retries, "retries", attach.DefaultMaxRetries, "Number of times a failed attach is retried")
	flags.BoolVar(&opts.skipProbe, "skip-probe", false, "Skip the WebSocket reachability probe before launching the adapter")

	return attachCmd, nil
}

func runAttach(cmd *cobra.Command, log logr.Logger, opts *attachOptions, rawSiteURI string) error {
	ctx := cmd.Context()
	log = log.WithName("attach")

	if opts.envFile != "" {
		if loadErr := godotenv.Load(opts.envFile); loadErr != nil {
			return fmt.Errorf("failed to load env file '%s': %w", opts.envFile, loadErr)
		}
	}

	resolver := newArgsSelectionResolver(rawSiteURI, opts.subscriptionID, opts.publishSettingsPath != "")
	if _, selected := resolver.CurrentSelection(); !selected {
		// Visibility gate: without a valid site selection there is nothing to
		// attach to, and no network call is worth making.
		return attach.ErrSelectionUnavailable
	}

	settingsFetcher, fetcherErr := newSettingsFetcher(opts, log)
	if fetcherErr != nil {
		return fetcherErr
	}

	configFetcher := webconfig.NewFetcher(webconfig.FetcherConfig{Logger: log})

	invoker, invokerErr := debugger.NewDAPInvoker(debugger.AdapterConfig{
		Args:      opts.adapterArgs,
		SkipProbe: opts.skipProbe,
	}, log)
	if invokerErr != nil {
		return invokerErr
	}
	defer invoker.Close()

	telemetrySystem := telemetry.NewTelemetrySystem()
	defer telemetrySystem.Shutdown(context.Background())

	workflow, workflowErr := attach.NewWorkflow(attach.WorkflowConfig{
		Selection:  resolver,
		Settings:   settingsFetcher,
		Config:     configFetcher,
		Invoker:    invoker,
		MaxRetries: opts.retries,
		Logger:     log,
		Tracer:     telemetrySystem.TracerProvider.Tracer("nodeattach"),
	})
	if workflowErr != nil {
		return workflowErr
	}

	target, runErr := workflow.Run(ctx)
	for runErr != nil {
		site, _ := resolver.CurrentSelection()
		fmt.Fprintln(cmd.ErrOrStderr(), attach.FailureMessage(site))

		if ctx.Err() != nil {
			return runErr
		}

		target, runErr = workflow.Retry(ctx)
		if errors.Is(runErr, attach.ErrRetryLimitReached) || errors.Is(runErr, attach.ErrNotRetryable) {
			return runErr
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Debugger attached to %s\n", target)

	// Keep the debug session alive until the adapter exits or the user interrupts.
	waitErr := invoker.Wait(ctx)
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// newSettingsFetcher picks between the management endpoint and a local
// publish-settings file.
func newSettingsFetcher(opts *attachOptions, log logr.Logger) (attach.SettingsFetcher, error) {
	if opts.publishSettingsPath != "" {
		return localSettingsFetcher{path: opts.publishSettingsPath}, nil
	}

	credential, credentialErr := azure.CredentialFromEnvironment()
	if credentialErr != nil {
		return nil, credentialErr
	}

	return azure.NewManagementClient(azure.ManagementClientConfig{
		Endpoint:   opts.endpoint,
		Credential: credential,
		Logger:     log,
	})
}

// localSettingsFetcher serves publish settings from a file downloaded ahead
// of time instead of the management endpoint.
type localSettingsFetcher struct {
	path string
}

func (f localSettingsFetcher) FetchPublishSettings(ctx context.Context, subscriptionID string, siteURI *url.URL) (attach.PublishSettings, error) {
	return azure.LoadPublishSettings(f.path)
}
