package interfaces

import "context"

// Harvester is the capability interface each platform worker implements.
// The host scheduler depends only on this contract; it never reaches into a
// worker's internals.
//
// Boolean polarity of the probes is part of the contract: true means "call
// again soon / nothing changed yet" (busy, too-soon, credential missing, or a
// failed queue drain that should fall back to another retrieval strategy);
// false means the cycle completed cleanly and no immediate follow-up is needed.
type Harvester interface {
	// PlatformName returns the stable platform key used in watermark keys and
	// emitted conversations (e.g. "chatgpt").
	PlatformName() string

	// FetchTargets returns the URLs this worker touches, for diagnostics.
	FetchTargets() []string

	// ProbeLoginPresence reports whether an authenticated session is currently
	// available on the platform (a credential can be scraped).
	ProbeLoginPresence(ctx context.Context) bool

	// ProbeNeedsSync runs at most one harvest cycle and reports whether the
	// host should retry soon (true) or back off until the next period (false).
	ProbeNeedsSync(ctx context.Context) bool
}
