package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type fingerprintedDoc struct {
	fp string
}

func (d fingerprintedDoc) PageCount() int      { return 10 }
func (d fingerprintedDoc) Fingerprint() string { return d.fp }

type multiFingerprintedDoc struct {
	fps []string
}

func (d multiFingerprintedDoc) PageCount() int { return 10 }

func (d multiFingerprintedDoc) Fingerprints() []string { return d.fps }

type bareDoc struct{}

func (bareDoc) PageCount() int { return 3 }

func TestPageKeyDeterministic(t *testing.T) {
	d := Deriver{}

	sources := []any{
		nil,
		"https://example.com/report.pdf",
		[]byte("raw document bytes"),
		fingerprintedDoc{fp: "abc123"},
		map[string]any{"b": 2, "a": 1},
	}

	for _, src := range sources {
		require.Equal(t, d.PageKey(src, 1), d.PageKey(src, 1))
	}
}

func TestPageKeyDistinctPages(t *testing.T) {
	d := Deriver{}
	src := []byte("same source")

	require.NotEqual(t, d.PageKey(src, 1), d.PageKey(src, 2))
}

func TestSourceKeyNil(t *testing.T) {
	d := Deriver{}
	require.Equal(t, SentinelEmpty, d.SourceKey(nil))
	require.Equal(t, SentinelEmpty+":1", d.PageKey(nil, 1))
}

func TestSourceKeyString(t *testing.T) {
	d := Deriver{}
	require.Equal(t, "https://example.com/a.pdf", d.SourceKey("https://example.com/a.pdf"))
}

func TestSourceKeyBytes(t *testing.T) {
	quick := Deriver{}
	exact := Deriver{Exact: true}
	data := bytes.Repeat([]byte("pdf"), 500)

	require.Equal(t, quick.SourceKey(data), quick.SourceKey(data))
	require.Equal(t, exact.SourceKey(data), exact.SourceKey(data))

	// The quick fingerprint samples leading bytes; the exact one digests
	// everything. They intentionally differ.
	require.NotEqual(t, quick.SourceKey(data), exact.SourceKey(data))

	// Exact mode sees changes anywhere in the content.
	altered := append(bytes.Clone(data), 'x')
	require.NotEqual(t, exact.SourceKey(data), exact.SourceKey(altered))

	// The quick fingerprint folds in total length, so same-prefix buffers of
	// different sizes still derive different keys.
	require.NotEqual(t, quick.SourceKey(data), quick.SourceKey(altered))
}

func TestSourceKeyDocumentHandle(t *testing.T) {
	d := Deriver{}

	// Two handles to the same underlying document share a key.
	require.Equal(t,
		d.SourceKey(fingerprintedDoc{fp: "fp-1"}),
		d.SourceKey(fingerprintedDoc{fp: "fp-1"}))
	require.Equal(t, "fp-1", d.SourceKey(fingerprintedDoc{fp: "fp-1"}))

	// A fingerprint list works when no single fingerprint exists.
	require.Equal(t, "fp-2", d.SourceKey(multiFingerprintedDoc{fps: []string{"fp-2", "fp-old"}}))

	// No fingerprint at all collapses into the shared unknown bucket.
	require.Equal(t, SentinelUnknown, d.SourceKey(bareDoc{}))
	require.Equal(t, SentinelUnknown, d.SourceKey(fingerprintedDoc{fp: ""}))
}

func TestSourceKeyGenericFallback(t *testing.T) {
	d := Deriver{}

	a := map[string]any{"url": "x", "range": []int{1, 2}}
	b := map[string]any{"range": []int{1, 2}, "url": "x"}

	// Serialization is key-order independent.
	require.Equal(t, d.SourceKey(a), d.SourceKey(b))

	c := map[string]any{"url": "y", "range": []int{1, 2}}
	require.NotEqual(t, d.SourceKey(a), d.SourceKey(c))
}
