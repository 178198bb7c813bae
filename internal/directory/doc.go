// Package directory searches the directory service for candidate
// contacts.
//
// The search result is a lazy, finite, forward-only stream: pages are
// fetched from the service only as the caller drains the iterator, in
// the service's own relevance order. The outreach core never assumes
// the stream can be re-enumerated - once a run has consumed a
// candidate, it is gone until a fresh search.
//
// Laziness matters because result sets can be large while the send cap
// is small: a run capped at ten sends should not page through hundreds
// of profiles it will never look at.
package directory
