// Package search defines the Provider interface for search-augmented answer
// generation.
//
// A provider takes a free-text query, consults a web search backend and
// returns a synthesised answer together with the grounding references it was
// built from. Callers are responsible for de-duplicating sources.
//
// All implementations must be safe for concurrent use.
package search

import "context"

// Source is one grounding reference backing an answer.
type Source struct {
	// URI is the address of the referenced page.
	URI string

	// Title is the human-readable page title. May be empty.
	Title string
}

// Result is the answer to a search query.
type Result struct {
	// Answer is the generated response text.
	Answer string

	// Sources lists zero or more grounding references in the order returned
	// by the backend. Duplicates are possible.
	Sources []Source
}

// Provider answers queries using web search.
type Provider interface {
	// Search runs one query. ctx bounds the whole remote call.
	Search(ctx context.Context, query string) (*Result, error)
}
