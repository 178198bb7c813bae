// Package session establishes and holds an authenticated context
// against the directory service.
//
// Authentication is two-phase: a primary credential login, then an
// out-of-band multi-factor approval. The MFA wait is the single long
// suspension point in the whole system - the Manager polls the
// challenge status until the operator approves on their device, the
// challenge is rejected, or the configured timeout elapses. All three
// failure modes are fatal; none are retried automatically.
//
// The resulting Session is opaque to the outreach core: it is only
// threaded through to the directory searcher and the notifier, which
// use it to authenticate their own requests.
package session
