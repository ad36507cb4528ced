package storage

import (
	"encoding/binary"
	"log"
)

// ───────────────────────────────────────────────────────────────────────────
// Cursor Engine — §4.3
// ───────────────────────────────────────────────────────────────────────────

// MaxKeyLen is the hard key-size ceiling the underlying device imposes;
// checked once, centrally, in copyinKey rather than scattered per operation.
const MaxKeyLen = 4096

type cursorState int

const (
	cursorNew cursorState = iota
	cursorPositioned
	cursorBetween
	cursorClosed
)

// Cursor is a single session's view onto one Object. It owns its own
// key/value buffer and the traversal baseline next/prev advance from; it is
// not safe for concurrent use by multiple goroutines, same as any other
// cursor-style API.
type Cursor struct {
	device *Device
	obj    *Object
	cfg    CursorConfig
	txnID  uint64

	state cursorState
	key   []byte
	value []byte
}

func newCursor(d *Device, obj *Object, txnID uint64, cfg CursorConfig) *Cursor {
	return &Cursor{device: d, obj: obj, txnID: txnID, cfg: cfg, state: cursorNew}
}

func (c *Cursor) copyinKey(k []byte) error {
	if len(k) > MaxKeyLen {
		return invalidArgf("key length %d exceeds maximum %d", len(k), MaxKeyLen)
	}
	c.key = append([]byte(nil), k...)
	return nil
}

func (c *Cursor) abortedFn() isAbortedFunc {
	return func(id uint64) bool { return c.device.txn.IsAborted(id) }
}

func (c *Cursor) visibleFn() isVisibleFunc {
	return func(id uint64) bool { return c.device.txn.Visible(id, c.txnID) }
}

func (c *Cursor) visibleEntry(entries []chainEntry) (chainEntry, bool) {
	return mostRecentVisible(entries, c.abortedFn(), c.visibleFn())
}

// registerCommitNotify asks the transaction service to tell the Device's
// transaction log how this cursor's transaction resolved. Notifier failures
// never fail the triggering operation (§7); they are logged and dropped.
func (c *Cursor) registerCommitNotify() {
	txnLog := c.device.txnLog
	c.device.txn.RegisterNotify(c.txnID, func(id uint64, committed bool) {
		if err := txnLog.Set(id, committed); err != nil {
			log.Printf("kvsadapter: transaction notify for txn %d failed: %v", id, err)
		}
	})
}

// Search implements search(k) (§4.3).
func (c *Cursor) Search(k []byte) ([]byte, error) {
	if err := c.copyinKey(k); err != nil {
		return nil, err
	}

	c.obj.mu.RLock()
	defer c.obj.mu.RUnlock()

	raw, found, err := c.device.kv.Get(c.obj.Cache, c.key)
	if err != nil {
		return nil, err
	}
	if found {
		entries, err := unmarshalChain(raw)
		if err != nil {
			return nil, err
		}
		if entry, ok := c.visibleEntry(entries); ok {
			if entry.Removed {
				return nil, notFoundf("search %x: not found", k)
			}
			c.value = append([]byte(nil), entry.Value...)
			c.state = cursorPositioned
			return c.value, nil
		}
	}

	v, found, err := c.device.kv.Get(c.obj.Primary, c.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundf("search %x: not found", k)
	}
	c.value = append([]byte(nil), v...)
	c.state = cursorPositioned
	return c.value, nil
}

// SearchNear implements search_near(k) (§4.3): try the exact key, then next,
// then prev, reporting which one matched via direction (0/+1/-1).
func (c *Cursor) SearchNear(k []byte) (foundKey, foundValue []byte, direction int, err error) {
	v, err := c.Search(k)
	if err == nil {
		return append([]byte(nil), c.key...), v, 0, nil
	}
	if Code(err) != KindNotFound {
		return nil, nil, 0, err
	}
	if nk, nv, nerr := c.Next(); nerr == nil {
		return nk, nv, 1, nil
	} else if Code(nerr) != KindNotFound {
		return nil, nil, 0, nerr
	}
	if pk, pv, perr := c.Prev(); perr == nil {
		return pk, pv, -1, nil
	} else if Code(perr) != KindNotFound {
		return nil, nil, 0, perr
	}
	return nil, nil, 0, notFoundf("search_near %x: namespace empty", k)
}

func encodeRecno(recno uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, recno)
	return b
}

func decodeRecnoKey(k []byte) (uint64, bool) {
	if len(k) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k), true
}

// mutate is the shared body of Insert/Update/Remove: read the chain, run
// the write/write conflict check, enforce the overwrite policy, append the
// new entry, and register the commit notifier.
func (c *Cursor) mutate(k, v []byte, removed bool, requireAbsent, requirePresent bool) error {
	c.obj.mu.Lock()
	defer c.obj.mu.Unlock()

	raw, found, err := c.device.kv.Get(c.obj.Cache, k)
	if err != nil {
		return err
	}
	var entries []chainEntry
	if found {
		entries, err = unmarshalChain(raw)
		if err != nil {
			return err
		}
	}

	if err := updateCheck(entries, c.abortedFn(), c.visibleFn()); err != nil {
		return err
	}

	if !c.cfg.Overwrite {
		cacheEntry, cacheOK := c.visibleEntry(entries)
		cacheHasValue := cacheOK && !cacheEntry.Removed
		cacheSaysAbsent := !cacheOK || cacheEntry.Removed

		if requireAbsent && cacheHasValue {
			return duplicateKeyf("insert %x: key already present", k)
		}
		if requireAbsent && cacheSaysAbsent {
			_, primFound, perr := c.device.kv.Get(c.obj.Primary, k)
			if perr != nil {
				return perr
			}
			if primFound {
				return duplicateKeyf("insert %x: key already present in primary", k)
			}
		}
		if requirePresent && !cacheHasValue {
			existsElsewhere := false
			if !cacheOK {
				_, primFound, perr := c.device.kv.Get(c.obj.Primary, k)
				if perr != nil {
					return perr
				}
				existsElsewhere = primFound
			}
			if !existsElsewhere {
				return notFoundf("update %x: no such key", k)
			}
		}
	}

	newChain := marshalChainAppend(raw, c.txnID, removed, v)
	if err := c.device.kv.Put(c.obj.Cache, k, newChain); err != nil {
		return err
	}
	c.obj.setCacheInUseLocked()
	c.obj.recordCleanerActivity(int64(len(newChain)))
	c.registerCommitNotify()

	c.key = append([]byte(nil), k...)
	if removed {
		c.value = nil
	} else {
		c.value = append([]byte(nil), v...)
	}
	c.state = cursorPositioned
	return nil
}

// Insert implements insert(k,v) (§4.3).
func (c *Cursor) Insert(k, v []byte) error {
	if err := c.copyinKey(k); err != nil {
		return err
	}
	key := c.key

	if c.obj.keyFormat == KeyFormatRecordNumber {
		if c.cfg.Append {
			key = encodeRecno(c.obj.nextAppendRecno())
		} else if rn, ok := decodeRecnoKey(key); ok {
			c.obj.bumpAppendRecno(rn)
		}
	}

	return c.mutate(key, v, false, true, false)
}

// Update implements update(k,v) (§4.3).
func (c *Cursor) Update(k, v []byte) error {
	if err := c.copyinKey(k); err != nil {
		return err
	}
	return c.mutate(c.key, v, false, false, true)
}

// Remove implements remove(k) (§4.3), including the bitfield special case:
// a single-bit-field object has no tombstone semantics, so remove is
// rewritten into an update with a zero byte.
func (c *Cursor) Remove(k []byte) error {
	if c.obj.bitfield {
		return c.Update(k, []byte{0})
	}
	if err := c.copyinKey(k); err != nil {
		return err
	}
	return c.mutate(c.key, nil, true, false, true)
}

func (c *Cursor) primaryStepRaw(forward bool, from []byte) (k, v []byte, ok bool, err error) {
	if forward {
		return c.device.kv.Next(c.obj.Primary, from)
	}
	return c.device.kv.Prev(c.obj.Primary, from)
}

// cacheWinner advances the cache-side traversal from `from`, skipping chains
// with no entry visible to this cursor, until it finds one or exhausts the
// namespace (§4.3 step 2).
func (c *Cursor) cacheWinner(forward bool, from []byte) (key, val []byte, tombstone, ok bool, err error) {
	cursor := from
	for {
		var k, raw []byte
		var found bool
		if forward {
			k, raw, found, err = c.device.kv.Next(c.obj.Cache, cursor)
		} else {
			k, raw, found, err = c.device.kv.Prev(c.obj.Cache, cursor)
		}
		if err != nil {
			return nil, nil, false, false, err
		}
		if !found {
			return nil, nil, false, false, nil
		}
		cursor = k

		entries, uerr := unmarshalChain(raw)
		if uerr != nil {
			return nil, nil, false, false, uerr
		}
		entry, visOK := c.visibleEntry(entries)
		if !visOK {
			continue
		}
		if entry.Removed {
			return k, nil, true, true, nil
		}
		return k, append([]byte(nil), entry.Value...), false, true, nil
	}
}

// step implements next/prev (§4.3 steps 1-6).
func (c *Cursor) step(forward bool) ([]byte, []byte, error) {
	c.obj.mu.RLock()
	defer c.obj.mu.RUnlock()

	if !c.obj.cacheInUseLocked() {
		k, v, ok, err := c.primaryStepRaw(forward, c.key)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, notFoundf("namespace exhausted")
		}
		c.key, c.value = k, v
		c.state = cursorPositioned
		return k, v, nil
	}

	baseline := c.key
	for {
		cacheKey, cacheVal, cacheTombstone, cacheOK, err := c.cacheWinner(forward, baseline)
		if err != nil {
			return nil, nil, err
		}
		primKey, primVal, primOK, err := c.primaryStepRaw(forward, baseline)
		if err != nil {
			return nil, nil, err
		}

		var useCache bool
		switch {
		case cacheOK && primOK:
			cmp := c.cfg.Collator.Compare(cacheKey, primKey)
			useCache = (forward && cmp <= 0) || (!forward && cmp >= 0)
		case cacheOK:
			useCache = true
		case primOK:
			useCache = false
		default:
			return nil, nil, notFoundf("namespace exhausted")
		}

		if useCache {
			if cacheTombstone {
				baseline = cacheKey
				continue
			}
			c.key, c.value = cacheKey, cacheVal
			c.state = cursorPositioned
			return cacheKey, cacheVal, nil
		}
		c.key, c.value = primKey, primVal
		c.state = cursorPositioned
		return primKey, primVal, nil
	}
}

// Next implements next() (§4.3).
func (c *Cursor) Next() ([]byte, []byte, error) { return c.step(true) }

// Prev implements prev() (§4.3).
func (c *Cursor) Prev() ([]byte, []byte, error) { return c.step(false) }

// Reset returns the cursor to between-rows, so the next Next/Prev starts
// from the namespace extreme.
func (c *Cursor) Reset() {
	c.key = nil
	c.value = nil
	c.state = cursorBetween
}

// Close decrements the Object's cursor reference count. Closing an
// already-closed cursor is a no-op.
func (c *Cursor) Close() error {
	if c.state == cursorClosed {
		return nil
	}
	c.obj.release()
	c.state = cursorClosed
	return nil
}
