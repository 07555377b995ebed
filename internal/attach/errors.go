/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package attach

import (
	"errors"
	"fmt"
)

var (
	// ErrSelectionUnavailable is returned when no remote site is currently selected.
	ErrSelectionUnavailable = errors.New("no remote site is currently selected")

	// ErrAuthenticationUnavailable is returned when no usable credential context exists
	// for the subscription.
	ErrAuthenticationUnavailable = errors.New("no usable credentials for the subscription")

	// ErrNetworkFailure is returned for transport-level failures during any fetch stage.
	ErrNetworkFailure = errors.New("network failure")

	// ErrMalformedDocument is returned when a fetched document cannot be parsed or is
	// missing a required element or attribute.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrProxyNotConfigured is returned when the site configuration has no handler
	// registration for the debugger WebSocket proxy.
	ErrProxyNotConfigured = errors.New("debugger proxy is not configured for the site")

	// ErrHostAttachFailure is returned when the host debugger refused or failed to attach.
	ErrHostAttachFailure = errors.New("debugger could not attach")

	// ErrNotRetryable is returned by Retry when the workflow is not in the Failed state.
	ErrNotRetryable = errors.New("workflow is not in a retryable state")

	// ErrRetryLimitReached is returned by Retry when the retry budget is exhausted.
	ErrRetryLimitReached = errors.New("attach retry limit reached")
)

// FailureReason tags a terminal workflow failure with its cause class.
type FailureReason string

const (
	ReasonNone       FailureReason = ""
	ReasonSelection  FailureReason = "selection"
	ReasonAuth       FailureReason = "auth"
	ReasonNetwork    FailureReason = "network"
	ReasonParse      FailureReason = "parse"
	ReasonNotFound   FailureReason = "not-found"
	ReasonHostAttach FailureReason = "host-attach"
	ReasonUnknown    FailureReason = "unknown"
)

// ReasonForError classifies an error from any workflow stage into its failure reason.
func ReasonForError(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrSelectionUnavailable):
		return ReasonSelection
	case errors.Is(err, ErrAuthenticationUnavailable):
		return ReasonAuth
	case errors.Is(err, ErrNetworkFailure):
		return ReasonNetwork
	case errors.Is(err, ErrMalformedDocument):
		return ReasonParse
	case errors.Is(err, ErrProxyNotConfigured):
		return ReasonNotFound
	case errors.Is(err, ErrHostAttachFailure):
		return ReasonHostAttach
	default:
		return ReasonUnknown
	}
}

// FailureMessage is the single user-visible message for any terminal failure.
// It names the target site and does not distinguish the failure cause; callers
// that need the cause classify the error with ReasonForError.
func FailureMessage(site SiteReference) string {
	return fmt.Sprintf("Failed to attach the debugger to %s. Verify that the site is running and retry.", site)
}
