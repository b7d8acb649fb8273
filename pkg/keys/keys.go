// Package keys derives stable cache keys from heterogeneous document
// source identities.
package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	// SentinelEmpty identifies a nil/absent source.
	SentinelEmpty = "empty-document"

	// SentinelUnknown identifies an open document handle that exposes no
	// fingerprint. All such documents share one identity bucket, so two
	// distinct fingerprint-less documents will collide on the same cache
	// entries. Known correctness gap, preserved deliberately.
	SentinelUnknown = "unknown-document"

	// quickSampleLimit bounds how many leading bytes the quick fingerprint
	// reads.
	quickSampleLimit = 400

	separator = ":"
)

// Fingerprinter is implemented by document handles that carry an intrinsic
// identity. Two handles to the same underlying document must report the same
// fingerprint.
type Fingerprinter interface {
	Fingerprint() string
}

// multiFingerprinter matches handles that expose a fingerprint list instead
// of a single value.
type multiFingerprinter interface {
	Fingerprints() []string
}

// pageCounter marks a value as an open document handle.
type pageCounter interface {
	PageCount() int
}

// Deriver converts source identities into stable string keys. The zero value
// uses the quick (sampled, non-cryptographic) fingerprint for byte content;
// set Exact for the full SHA-256 digest. The mode is fixed per instance so a
// cache addressed through one Deriver is self-consistent.
type Deriver struct {
	// Exact selects the full-content SHA-256 fingerprint over the sampled
	// xxhash one. Quick and exact keys for the same bytes differ.
	Exact bool
}

// PageKey returns the cache key for one page of a source:
// "{sourceKey}:{page}" with a 1-indexed decimal page number.
func (d Deriver) PageKey(source any, page int) string {
	return d.SourceKey(source) + separator + strconv.Itoa(page)
}

// SourceKey derives the source portion of a cache key. It is deterministic
// for equal inputs and never fails: unrecognized shapes fall back to a hashed
// generic serialization.
func (d Deriver) SourceKey(source any) string {
	switch src := source.(type) {
	case nil:
		return SentinelEmpty
	case string:
		// URL or path identity, used verbatim.
		return src
	case []byte:
		return d.fingerprint(src)
	}

	if fp, ok := source.(Fingerprinter); ok {
		if s := fp.Fingerprint(); s != "" {
			return s
		}
	}
	if fp, ok := source.(multiFingerprinter); ok {
		if list := fp.Fingerprints(); len(list) > 0 && list[0] != "" {
			return list[0]
		}
	}
	if _, ok := source.(pageCounter); ok {
		// An open handle with no usable fingerprint.
		return SentinelUnknown
	}

	return d.fingerprint(serialize(source))
}

func (d Deriver) fingerprint(data []byte) string {
	if d.Exact {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	return quickFingerprint(data)
}

// quickFingerprint hashes at most the first quickSampleLimit bytes together
// with the total length. Approximate identity for latency-critical paths.
func quickFingerprint(data []byte) string {
	n := len(data)
	if n > quickSampleLimit {
		n = quickSampleLimit
	}
	h := xxhash.New()
	h.Write(data[:n])

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(data)))
	h.Write(sizeBuf[:])

	return strconv.FormatUint(h.Sum64(), 16) + "-" + strconv.Itoa(len(data))
}

// serialize produces a deterministic byte representation of an arbitrary
// value. encoding/json sorts map keys, which gives stable output for the
// common shapes; anything unmarshalable falls back to fmt, which also sorts
// map keys.
func serialize(source any) []byte {
	if data, err := json.Marshal(source); err == nil {
		return data
	}
	return fmt.Appendf(nil, "%T:%v", source, source)
}
