/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package attach

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/microsoft/nodeattach/pkg/telemetry"
)

// State is the workflow position. Transitions are strictly forward; any
// stage failure moves directly to StateFailed, and a caller-driven Retry
// re-enters the pipeline from the beginning.
type State int32

const (
	StateIdle State = iota
	StateFetchingSettings
	StateFetchingConfig
	StateExtractingPath
	StateAttaching
	StateAttached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFetchingSettings:
		return "FetchingSettings"
	case StateFetchingConfig:
		return "FetchingConfig"
	case StateExtractingPath:
		return "ExtractingPath"
	case StateAttaching:
		return "Attaching"
	case StateAttached:
		return "Attached"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultMaxRetries bounds the number of Retry calls after a failed run.
const DefaultMaxRetries = 3

// DebugEngineID identifies the Node.js remote debug engine to the host debugger.
var DebugEngineID = uuid.MustParse("3e58fce1-c9a9-47f4-ae0a-5e6a27eec4b5")

// WorkflowConfig contains the collaborators and settings for a Workflow.
// Selection, Settings, Config and Invoker are required.
type WorkflowConfig struct {
	// Selection resolves the currently selected site.
	Selection SelectionResolver

	// Settings fetches the publish-settings document for a site.
	Settings SettingsFetcher

	// Config fetches the site configuration using publish profile credentials.
	Config ConfigFetcher

	// Invoker hands the constructed attach target to the host debugger.
	Invoker AttachInvoker

	// ProxyTypeName is the handler type matched in the site configuration.
	// Defaults to WebSocketProxyTypeName.
	ProxyTypeName string

	// EngineID is the debug engine passed to the invoker. Defaults to DebugEngineID.
	EngineID uuid.UUID

	// MaxRetries bounds Retry calls after a failure. Defaults to DefaultMaxRetries.
	MaxRetries int

	// Logger for workflow operations.
	Logger logr.Logger

	// Tracer for per-stage spans. A no-op tracer is used when nil.
	Tracer trace.Tracer
}

// Workflow runs the remote attach negotiation: publish settings, site
// configuration, proxy route extraction, and the final attach invocation.
// A Workflow value is single-flight: one Run, then caller-driven Retry
// while in the Failed state. Concurrent attach attempts should use
// independent Workflow values; they share no state.
type Workflow struct {
	cfg    WorkflowConfig
	log    logr.Logger
	tracer trace.Tracer

	mu         sync.Mutex
	state      State
	attempts   int
	lastErr    error
	lastReason FailureReason
}

// NewWorkflow creates a workflow from the given configuration.
func NewWorkflow(cfg WorkflowConfig) (*Workflow, error) {
	if cfg.Selection == nil || cfg.Settings == nil || cfg.Config == nil || cfg.Invoker == nil {
		return nil, errors.New("workflow configuration is missing a required collaborator")
	}

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("attach")
	}

	if cfg.ProxyTypeName == "" {
		cfg.ProxyTypeName = WebSocketProxyTypeName
	}
	if cfg.EngineID == uuid.Nil {
		cfg.EngineID = DebugEngineID
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &Workflow{
		cfg:    cfg,
		log:    log,
		tracer: tracer,
		state:  StateIdle,
	}, nil
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastFailure returns the reason tag and error of the most recent failure.
func (w *Workflow) LastFailure() (FailureReason, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReason, w.lastErr
}

// Run executes the attach negotiation from the Idle state.
func (w *Workflow) Run(ctx context.Context) (AttachTarget, error) {
	w.mu.Lock()
	if w.state != StateIdle {
		state := w.state
		w.mu.Unlock()
		return AttachTarget{}, fmt.Errorf("workflow has already run (state %s)", state)
	}
	w.mu.Unlock()

	return w.run(ctx)
}

// Retry re-enters the pipeline after a failure with identical inputs and no
// partial-state reuse. It is allowed only from the Failed state and is
// bounded by the configured retry budget.
func (w *Workflow) Retry(ctx context.Context) (AttachTarget, error) {
	w.mu.Lock()
	if w.state != StateFailed {
		state := w.state
		w.mu.Unlock()
		return AttachTarget{}, fmt.Errorf("%w (state %s)", ErrNotRetryable, state)
	}
	if w.attempts-1 >= w.cfg.MaxRetries {
		w.mu.Unlock()
		return AttachTarget{}, fmt.Errorf("%w (%d retries)", ErrRetryLimitReached, w.cfg.MaxRetries)
	}
	w.mu.Unlock()

	return w.run(ctx)
}

func (w *Workflow) run(ctx context.Context) (AttachTarget, error) {
	w.mu.Lock()
	w.attempts++
	attempt := w.attempts
	w.mu.Unlock()

	site, selected := w.cfg.Selection.CurrentSelection()
	if !selected {
		return AttachTarget{}, w.fail(site, ErrSelectionUnavailable)
	}

	log := w.log.WithValues("site", site.String(), "attempt", attempt)

	w.setState(StateFetchingSettings)
	log.Info("Fetching publish settings", "subscription", site.SubscriptionID)
	settings, settingsErr := telemetry.CallWithTelemetry(w.tracer, "FetchPublishSettings", ctx,
		func(spanCtx context.Context) (PublishSettings, error) {
			return w.cfg.Settings.FetchPublishSettings(spanCtx, site.SubscriptionID, site.URI)
		})
	if settingsErr != nil {
		return AttachTarget{}, w.fail(site, settingsErr)
	}

	// Extracting the FTP profile happens before any further network call, so a
	// document without an FTP profile fails without touching the site.
	profile, profileErr := settings.FTPProfile()
	if profileErr != nil {
		return AttachTarget{}, w.fail(site, profileErr)
	}

	w.setState(StateFetchingConfig)
	log.V(1).Info("Fetching site configuration", "publishUrl", profile.PublishURL)
	siteConfig, configErr := telemetry.CallWithTelemetry(w.tracer, "FetchSiteConfig", ctx,
		func(spanCtx context.Context) (SiteConfiguration, error) {
			return w.cfg.Config.FetchSiteConfig(spanCtx, profile)
		})
	if configErr != nil {
		return AttachTarget{}, w.fail(site, configErr)
	}

	w.setState(StateExtractingPath)
	route, found := SelectProxyRoute(siteConfig.HandlerRoutes(), w.cfg.ProxyTypeName)
	if !found {
		return AttachTarget{}, w.fail(site, fmt.Errorf("%w: no handler of type %q", ErrProxyNotConfigured, w.cfg.ProxyTypeName))
	}
	log.V(1).Info("Found debugger proxy route", "path", route.Path, "handlerType", route.TypeName)

	target := NewAttachTarget(site, route.Path)
	processToken := uuid.NewString()

	w.setState(StateAttaching)
	log.Info("Attaching debugger", "target", target.String(), "engineID", w.cfg.EngineID.String())
	attachErr := telemetry.CallWithTelemetryNoResult(w.tracer, "Attach", ctx,
		func(spanCtx context.Context) error {
			return w.cfg.Invoker.Attach(spanCtx, target, w.cfg.EngineID, processToken)
		})
	if attachErr != nil {
		if !errors.Is(attachErr, ErrHostAttachFailure) {
			attachErr = fmt.Errorf("%w: %v", ErrHostAttachFailure, attachErr)
		}
		return AttachTarget{}, w.fail(site, attachErr)
	}

	w.setState(StateAttached)
	log.Info("Debugger attached", "target", target.String())
	return target, nil
}

func (w *Workflow) setState(state State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

func (w *Workflow) fail(site SiteReference, err error) error {
	reason := ReasonForError(err)

	w.mu.Lock()
	w.state = StateFailed
	w.lastErr = err
	w.lastReason = reason
	w.mu.Unlock()

	w.log.Error(err, "Attach workflow failed", "site", site.String(), "reason", string(reason))
	return err
}
