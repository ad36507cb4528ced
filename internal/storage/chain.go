package storage

import (
	"encoding/binary"
	"unsafe"
)

// ───────────────────────────────────────────────────────────────────────────
// Update-Chain Codec
// ───────────────────────────────────────────────────────────────────────────
//
// The cache namespace stores, under each key, a marshalled chain of pending
// updates: {count u32_LE}{entry}*, entry = {txn_id native-8B}{marker 1B}
// [{len u32_LE}{bytes}]. Transaction IDs are written in native byte order —
// intentionally, matching the device this is adapted from: the on-disk
// format is tied to the machine that wrote it. A rewrite that wants a
// portable format would fix the endianness here and version the layout.

// removeMarker marks a tombstone entry: no length/bytes follow.
const removeMarker byte = 'R'

// valueMarker is used for ordinary value entries (any byte other than 'R'
// is legal per the format; this is the conventional choice).
const valueMarker byte = ' '

var nativeEndian = func() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// chainEntry is one parsed update-chain entry. Value aliases the source
// buffer passed to unmarshalChain — callers must not mutate that buffer
// while entries from it are live.
type chainEntry struct {
	TxnID   uint64
	Removed bool
	Value   []byte
}

// marshalChainAppend appends a new entry (txnID, value-or-tombstone) to an
// existing serialized chain (nil/empty is a valid starting point), bumping
// the count prefix in place. Returns the new buffer; it does not alias buf.
func marshalChainAppend(buf []byte, txnID uint64, removed bool, value []byte) []byte {
	var count uint32
	if len(buf) >= 4 {
		count = binary.LittleEndian.Uint32(buf[:4])
	}

	entrySize := 8 + 1
	if !removed {
		entrySize += 4 + len(value)
	}

	tailLen := 0
	if len(buf) > 4 {
		tailLen = len(buf) - 4
	}
	out := make([]byte, 0, 4+tailLen+entrySize)
	out = append(out, 0, 0, 0, 0) // placeholder count, filled below
	if len(buf) > 4 {
		out = append(out, buf[4:]...)
	}

	var txBuf [8]byte
	nativeEndian.PutUint64(txBuf[:], txnID)
	out = append(out, txBuf[:]...)
	if removed {
		out = append(out, removeMarker)
	} else {
		out = append(out, valueMarker)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
		out = append(out, lenBuf[:]...)
		out = append(out, value...)
	}

	binary.LittleEndian.PutUint32(out[:4], count+1)
	return out
}

// unmarshalChain parses a serialized chain into entries in append order.
// Each entry's Value aliases buf — do not mutate buf while entries are live.
func unmarshalChain(buf []byte) ([]chainEntry, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf) < 4 {
		return nil, invalidArgf("chain: truncated count prefix")
	}
	count := binary.LittleEndian.Uint32(buf[:4])
	entries := make([]chainEntry, 0, count)

	off := 4
	for i := uint32(0); i < count; i++ {
		if off+9 > len(buf) {
			return nil, invalidArgf("chain: truncated entry %d", i)
		}
		txnID := nativeEndian.Uint64(buf[off : off+8])
		marker := buf[off+8]
		off += 9

		entry := chainEntry{TxnID: txnID}
		if marker == removeMarker {
			entry.Removed = true
		} else {
			if off+4 > len(buf) {
				return nil, invalidArgf("chain: truncated value length at entry %d", i)
			}
			vlen := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			if off+int(vlen) > len(buf) {
				return nil, invalidArgf("chain: truncated value bytes at entry %d", i)
			}
			entry.Value = buf[off : off+int(vlen)]
			off += int(vlen)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
