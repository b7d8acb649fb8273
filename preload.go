package pagetextcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/richardartoul/pagetextcache/pkg/keys"
	"github.com/richardartoul/pagetextcache/pkg/locking"
	"github.com/richardartoul/pagetextcache/pkg/metrics"
)

// DefaultPreloadTimeout bounds document acquisition during a preload.
// Extraction itself is not subject to it.
const DefaultPreloadTimeout = 30 * time.Second

// defaultPreloadConcurrency bounds how many pages extract at once.
const defaultPreloadConcurrency = 4

// PreloadResult summarizes one preload call.
//
// Success is true iff zero per-page failures occurred. Cached counts pages
// now present in the cache, including ones skipped because they were already
// cached. TotalPages counts the requested pages that were in range.
type PreloadResult struct {
	Success    bool        `json:"success"`
	Cached     int         `json:"cached"`
	Failed     int         `json:"failed"`
	TotalPages int         `json:"total_pages"`
	Errors     []PageError `json:"errors,omitempty"`
}

type preloadOptions struct {
	onProgress  func(loaded, total int)
	timeout     time.Duration
	skipCached  bool
	concurrency int
}

// PreloadOption tunes a single preload call.
type PreloadOption func(*preloadOptions)

// WithProgress registers a callback invoked as pages finish extracting.
func WithProgress(fn func(loaded, total int)) PreloadOption {
	return func(o *preloadOptions) { o.onProgress = fn }
}

// WithTimeout bounds document acquisition. Default 30s.
func WithTimeout(d time.Duration) PreloadOption {
	return func(o *preloadOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSkipCached controls whether already-cached pages are skipped rather
// than re-extracted. Default true.
func WithSkipCached(skip bool) PreloadOption {
	return func(o *preloadOptions) { o.skipCached = skip }
}

// WithConcurrency bounds concurrent page extractions. Default 4.
func WithConcurrency(n int) PreloadOption {
	return func(o *preloadOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newPreloadOptions(opts []PreloadOption) preloadOptions {
	o := preloadOptions{
		timeout:     DefaultPreloadTimeout,
		skipCached:  true,
		concurrency: defaultPreloadConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Preloader drives bulk population of a cache ahead of need. Per-page
// failures are tolerated: siblings keep going and the result carries the
// error list. A keyed lock group guarantees that concurrent preloads of the
// same page extract its text only once.
type Preloader struct {
	cache  *Manager
	loader DocumentLoader
	locks  locking.Group
	logger *slog.Logger
	keys   keys.Deriver
}

// NewPreloader creates a Preloader issuing get/set calls against cache and
// acquiring documents through loader.
func NewPreloader(cache *Manager, loader DocumentLoader) *Preloader {
	return &Preloader{
		cache:  cache,
		loader: loader,
		locks:  locking.NewMemLock(),
		logger: cache.logger,
		keys:   keys.Deriver{Exact: cache.cfg.ExactKeys},
	}
}

// Preload populates the cache with the text content of the given pages.
//
// Validation failures (nil source, empty page list, non-positive page
// numbers) and acquisition failures return an error with a nil result;
// per-page extraction failures do not — they are captured in the result.
func (p *Preloader) Preload(ctx context.Context, source any, pages []int, opts ...PreloadOption) (*PreloadResult, error) {
	o := newPreloadOptions(opts)

	if source == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidArgument)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: page list is empty", ErrInvalidArgument)
	}
	for _, n := range pages {
		if n < 1 {
			return nil, fmt.Errorf("%w: page numbers must be positive, got %d", ErrInvalidArgument, n)
		}
	}

	doc, err := p.resolve(ctx, source, o.timeout)
	if err != nil {
		return nil, err
	}

	return p.preloadResolved(ctx, source, doc, pages, o)
}

// PreloadAll preloads every page of the document.
func (p *Preloader) PreloadAll(ctx context.Context, source any, opts ...PreloadOption) (*PreloadResult, error) {
	o := newPreloadOptions(opts)

	if source == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidArgument)
	}

	doc, err := p.resolve(ctx, source, o.timeout)
	if err != nil {
		return nil, err
	}

	pages := make([]int, doc.PageCount())
	for i := range pages {
		pages[i] = i + 1
	}
	return p.preloadResolved(ctx, source, doc, pages, o)
}

// resolve turns a source into an open document handle, racing acquisition
// against the timeout. A source that already is a handle is used directly.
func (p *Preloader) resolve(ctx context.Context, source any, timeout time.Duration) (Document, error) {
	if doc, ok := source.(Document); ok {
		return doc, nil
	}

	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doc, err := p.loader.Load(acqCtx, source)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(acqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrAcquisitionTimeout, timeout)
		}
		return nil, fmt.Errorf("failed to acquire document: %w", err)
	}
	return doc, nil
}

func (p *Preloader) preloadResolved(ctx context.Context, source any, doc Document, pages []int, o preloadOptions) (*PreloadResult, error) {
	start := time.Now()
	defer func() { p.cache.tracker.Record(metrics.OpPreload, time.Since(start)) }()

	// Out-of-range pages are dropped with a warning, not an error.
	numPages := doc.PageCount()
	valid := make([]int, 0, len(pages))
	for _, n := range pages {
		if n > numPages {
			p.logger.Warn("preload page out of range, skipping", "page", n, "pages", numPages)
			continue
		}
		valid = append(valid, n)
	}

	result := &PreloadResult{TotalPages: len(valid)}

	// Probe before fetching so already-cached pages cost one read, not one
	// extraction.
	remainder := valid
	if o.skipCached {
		remainder = remainder[:0:0]
		for _, n := range valid {
			if _, ok := p.cache.Get(ctx, source, n); ok {
				result.Cached++
			} else {
				remainder = append(remainder, n)
			}
		}
	}

	if len(remainder) == 0 {
		result.Success = true
		return result, nil
	}

	var (
		mu        sync.Mutex
		completed int
		total     = len(remainder)
	)

	// All-settle: a failing page records its error and never cancels
	// siblings, so the group context is left alone and closures always
	// return nil.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, n := range remainder {
		n := n
		g.Go(func() error {
			err := p.fetchPage(gctx, source, doc, n, o.skipCached)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, PageError{Page: n, Err: err})
				return nil
			}
			result.Cached++
			completed++
			if o.onProgress != nil {
				o.onProgress(completed, total)
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Page < result.Errors[j].Page
	})
	result.Success = result.Failed == 0
	return result, nil
}

// fetchPage extracts one page's text and populates the cache, holding the
// page's key lock so a concurrent preload of the same page waits and then
// finds it cached instead of extracting again.
func (p *Preloader) fetchPage(ctx context.Context, source any, doc Document, n int, recheck bool) error {
	_, err := p.locks.DoWithLock(p.keys.PageKey(source, n), func() (any, error) {
		if recheck {
			if _, ok := p.cache.Get(ctx, source, n); ok {
				return nil, nil
			}
		}

		page, err := doc.Page(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("failed to load page: %w", err)
		}

		content, err := page.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text: %w", err)
		}

		p.cache.Set(ctx, source, n, content)
		return nil, nil
	})
	return err
}
