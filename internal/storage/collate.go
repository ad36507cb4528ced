package storage

import (
	"bytes"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ───────────────────────────────────────────────────────────────────────────
// Collator — host-pluggable key collation
// ───────────────────────────────────────────────────────────────────────────
//
// next/prev (§4.3 step 4) compare the cache-side and primary-side candidate
// keys "using the host's collator." Collator is that pluggable comparison;
// a host configures one per its own locale/encoding conventions. The device
// itself always traverses Next/Prev in raw byte order (memKVDevice sorts its
// keys with bytes.Compare), so defaultCollator must agree with that order —
// any other default would let the merge in step() pick the wrong side and
// walk cache/primary out of order. A host that wants locale-aware
// search_near/next/prev ordering on top of that can opt into NewTextCollator
// explicitly via CursorConfig; it is never picked automatically.

// Collator orders two keys the way search_near/next/prev need: negative if
// a < b, zero if equal, positive if a > b.
type Collator interface {
	Compare(a, b []byte) int
}

// byteCollator compares keys as raw bytes — the ordering the underlying
// device itself uses, and the natural choice for record-number keys.
type byteCollator struct{}

func (byteCollator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// ByteCollator returns the raw byte-order Collator.
func ByteCollator() Collator { return byteCollator{} }

// textCollator adapts golang.org/x/text/collate to the Collator interface.
type textCollator struct {
	c *collate.Collator
}

// NewTextCollator returns a Collator using Unicode collation rules for the
// given language tag (language.Und for a locale-independent default).
func NewTextCollator(tag language.Tag) Collator {
	return &textCollator{c: collate.New(tag)}
}

func (t *textCollator) Compare(a, b []byte) int { return t.c.Compare(a, b) }

// defaultCollator is used by the Cursor Engine when a cursor is opened
// without an explicit collator configuration (§6: "collator per host
// convention"). It must match the device's own byte-order traversal, so it
// defaults to ByteCollator rather than a locale-aware one.
var defaultCollator Collator = ByteCollator()
