package pagetextcache

import "context"

// DocumentLoader resolves a source identity into an open document handle.
// It is the boundary to the document-rendering collaborator; loading may be
// slow, so the preloader bounds it with a timeout.
type DocumentLoader interface {
	Load(ctx context.Context, source any) (Document, error)
}

// Document is an open document handle. Implementations that also implement
// keys.Fingerprinter get stable content-derived cache keys; handles without a
// fingerprint share the unknown-document identity bucket.
type Document interface {
	// PageCount reports the number of pages.
	PageCount() int

	// Page returns the handle for the 1-indexed page n.
	Page(ctx context.Context, n int) (Page, error)
}

// Page is a single page handle.
type Page interface {
	// Text extracts the page's text content.
	Text(ctx context.Context) (*TextContent, error)
}
