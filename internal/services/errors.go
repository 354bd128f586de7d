// Package services implements the per-account decision pipelines: the
// reply pipeline that answers buyer messages, the delivery pipeline that
// fulfils paid orders, and the small pieces of state they share (pause
// windows and per-order gates).
//
// This file centralizes the service-level error values. They are recovered
// locally by the account runtime and surfaced as log lines, notifications
// and metrics, never propagated to the fleet.
package services

import "errors"

// Delivery pipeline errors.
var (
	// ErrNotOwned indicates the item of a trigger does not belong to the
	// credential handling it.
	ErrNotOwned = errors.New("item not owned by this account")

	// ErrNoOrderID is returned when no order id can be extracted from a
	// trigger frame.
	ErrNoOrderID = errors.New("no order id in trigger")

	// ErrHeld is returned when the order is inside its post-delivery hold
	// or cooldown window.
	ErrHeld = errors.New("order held")

	// ErrRuleMiss indicates no delivery rule matched the order.
	ErrRuleMiss = errors.New("no delivery rule matched")

	// ErrRenderFailed indicates the matched card yielded no content.
	ErrRenderFailed = errors.New("card rendered no content")
)

// Reply pipeline errors.
var (
	// ErrExternalReply is returned by an ExternalReplier whose upstream did
	// not produce a usable reply.
	ErrExternalReply = errors.New("external reply unavailable")
)
