package pagetextcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeClock lets tests control entry expiration without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testContent(page int) *TextContent {
	return &TextContent{
		Items: []TextItem{
			{Str: fmt.Sprintf("text of page %d", page), FontName: "F1"},
		},
		Styles: map[string]TextStyle{
			"F1": {FontFamily: "serif", Ascent: 0.9, Descent: -0.2},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDoc is a document handle with a controllable page set.
type fakeDoc struct {
	pages    int
	pageErrs map[int]error
	fp       string

	mu          sync.Mutex
	extractions map[int]int
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{
		pages:       pages,
		pageErrs:    make(map[int]error),
		extractions: make(map[int]int),
	}
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Fingerprint() string { return d.fp }

func (d *fakeDoc) Page(_ context.Context, n int) (Page, error) {
	return &fakePage{doc: d, n: n}, nil
}

func (d *fakeDoc) extractionCount(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extractions[n]
}

type fakePage struct {
	doc *fakeDoc
	n   int
}

func (p *fakePage) Text(_ context.Context) (*TextContent, error) {
	p.doc.mu.Lock()
	p.doc.extractions[p.n]++
	p.doc.mu.Unlock()

	if err := p.doc.pageErrs[p.n]; err != nil {
		return nil, err
	}
	return testContent(p.n), nil
}

// fakeLoader resolves any source to its configured document, optionally
// after a delay or with an error.
type fakeLoader struct {
	doc   *fakeDoc
	delay time.Duration
	err   error
}

func (l *fakeLoader) Load(ctx context.Context, _ any) (Document, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.doc, nil
}
