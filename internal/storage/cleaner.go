package storage

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Cleaner — §4.6
// ───────────────────────────────────────────────────────────────────────────

const (
	cleanerMinBackoff = time.Second
	cleanerMaxBackoff = 5 * time.Second
)

// cleaner is the background worker that migrates globally-visible cache
// chains into the primary namespace and trims the transaction log. One runs
// per Device (Device.StartCleaner); Recovery (recovery.go) drives the same
// migration logic directly, in recovery mode, without the background loop.
//
// kvs_reclaim_period additionally accepts a standard 5-field cron
// expression (domain stack): when set, a forced pass runs on that schedule
// regardless of whether any Object has crossed its byte/ops threshold,
// independent of the threshold-driven backoff loop below.
type cleaner struct {
	device *Device
	sched  *cron.Cron
}

func newCleaner(d *Device) *cleaner {
	return &cleaner{device: d}
}

// startSchedule parses kvs_reclaim_period as a cron expression and, if it
// parses, starts a scheduled forced pass alongside the backoff loop. A
// period that fails to parse as cron is ignored: the backoff loop runs as
// usual and does not read kvs_reclaim_period.
func (cl *cleaner) startSchedule() {
	period := cl.device.config.ReclaimPeriod
	if period == "" {
		return
	}
	sched, err := cron.ParseStandard(period)
	if err != nil {
		return
	}
	cl.sched = cron.New()
	cl.sched.Schedule(sched, cron.FuncJob(func() {
		if err := cl.runPass(cleanerModeLive); err != nil {
			log.Printf("kvsadapter: scheduled cleaner pass on device %q failed: %v", cl.device.Name, err)
		}
	}))
	cl.sched.Start()
}

func (cl *cleaner) stopSchedule() {
	if cl.sched != nil {
		cl.sched.Stop()
	}
}

// loop runs until stop is closed, with exponential-ish back-off (1s growing
// to 5s) while no Object exceeds its cleaner thresholds.
func (cl *cleaner) loop(stop <-chan struct{}, done chan<- struct{}) {
	cl.startSchedule()
	defer cl.stopSchedule()
	defer close(done)
	backoff := cleanerMinBackoff
	for {
		select {
		case <-stop:
			_ = cl.runPass(cleanerModeLive)
			return
		case <-time.After(backoff):
		}

		if cl.anyObjectOverThreshold() {
			_ = cl.runPass(cleanerModeLive)
			backoff = cleanerMinBackoff
			continue
		}
		backoff *= 2
		if backoff > cleanerMaxBackoff {
			backoff = cleanerMaxBackoff
		}
	}
}

func (cl *cleaner) thresholds() (byteLimit, opsLimit int64) {
	byteLimit = int64(cl.device.config.ReclaimThreshold)
	if byteLimit <= 0 {
		byteLimit = defaultReclaimThresholdBytes
	}
	opsLimit = defaultReclaimOpsThreshold
	return
}

func (cl *cleaner) anyObjectOverThreshold() bool {
	byteLimit, opsLimit := cl.thresholds()
	for _, uri := range cl.device.registry.list() {
		obj, err := cl.device.registry.Open(uri, 0)
		if err != nil {
			continue
		}
		if obj.exceedsCleanerThresholds(byteLimit, opsLimit) {
			return true
		}
	}
	return false
}

type cleanerMode int

const (
	// cleanerModeLive is the ordinary background pass: respects
	// globally-visible-all and picks the last-not-aborted entry.
	cleanerModeLive cleanerMode = iota
	// cleanerModeRecovery skips the globally-visible-all filter (oldest=0)
	// and picks the last-committed entry instead, since unresolved
	// transactions cannot be safely migrated after a crash (§4.8).
	cleanerModeRecovery
)

// runPass executes one full cleaner pass: migrate globally-visible (or, in
// recovery mode, committed) chains into the primary, flush, delete the
// migrated cache entries, then, in live mode, trim the transaction log
// below the smaller of oldest and every remaining chain's txn minimum.
func (cl *cleaner) runPass(mode cleanerMode) error {
	var oldest uint64
	if mode == cleanerModeLive {
		oldest = cl.device.txn.OldestActiveID()
	}

	txnMinSeen := oldest
	haveTxnMin := mode == cleanerModeLive

	for _, uri := range cl.device.registry.list() {
		obj, err := cl.device.registry.Open(uri, 0)
		if err != nil {
			return err
		}

		if err := cl.migrateObject(obj, mode, oldest, &txnMinSeen, &haveTxnMin); err != nil {
			return err
		}
	}

	if err := cl.device.kv.Flush(); err != nil {
		return err
	}

	for _, uri := range cl.device.registry.list() {
		obj, err := cl.device.registry.Open(uri, 0)
		if err != nil {
			return err
		}
		if err := cl.deleteMigrated(obj, mode, oldest); err != nil {
			return err
		}
		obj.resetCleanerCounters()
	}

	if haveTxnMin {
		if err := cl.device.txnLog.Clean(txnMinSeen); err != nil {
			return err
		}
	}
	return nil
}

// migrateObject walks obj's cache namespace once, writing each
// globally-visible (or committed, in recovery mode) chain's resolved value
// into the primary — deletion happens only in the second pass
// (deleteMigrated), so a crash between the two leaves a replay-idempotent
// state.
func (cl *cleaner) migrateObject(obj *Object, mode cleanerMode, oldest uint64, txnMinSeen *uint64, haveTxnMin *bool) error {
	obj.mu.RLock()
	defer obj.mu.RUnlock()

	var cursor []byte
	for {
		k, raw, found, err := cl.device.kv.Next(obj.Cache, cursor)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		cursor = append([]byte(nil), k...)

		entries, err := unmarshalChain(raw)
		if err != nil {
			return err
		}

		if mode == cleanerModeLive {
			if !globallyVisibleAll(entries, oldest) {
				if min, ok := txnMin(entries); ok {
					if !*haveTxnMin || min < *txnMinSeen {
						*txnMinSeen = min
						*haveTxnMin = true
					}
				}
				continue
			}
		}

		var winner chainEntry
		var ok bool
		if mode == cleanerModeRecovery {
			// A crash may have emptied the in-process TxnService, so
			// resolution must come from the durable transaction
			// namespace (§4.2/§4.8), not cl.device.txn.
			var stateErr error
			winner, ok = lastCommitted(entries, func(id uint64) bool {
				if stateErr != nil {
					return false
				}
				committed, _, _, err := cl.device.txnLog.State(id)
				if err != nil {
					stateErr = err
					return false
				}
				return committed
			})
			if stateErr != nil {
				return stateErr
			}
		} else {
			winner, ok = lastNotAborted(entries, func(id uint64) bool { return cl.device.txn.IsAborted(id) })
		}
		if !ok {
			continue
		}

		if winner.Removed {
			if err := cl.device.kv.Delete(obj.Primary, k); err != nil {
				return err
			}
		} else {
			if err := cl.device.kv.Put(obj.Primary, k, winner.Value); err != nil {
				return err
			}
		}
	}
}

// deleteMigrated re-walks obj's cache namespace under the write lock and
// deletes every chain that qualified for migration on this pass.
func (cl *cleaner) deleteMigrated(obj *Object, mode cleanerMode, oldest uint64) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()

	var cursor []byte
	var toDelete [][]byte
	for {
		k, raw, found, err := cl.device.kv.Next(obj.Cache, cursor)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		cursor = append([]byte(nil), k...)

		entries, err := unmarshalChain(raw)
		if err != nil {
			return err
		}
		if mode == cleanerModeLive && !globallyVisibleAll(entries, oldest) {
			continue
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
	}

	for _, k := range toDelete {
		if err := cl.device.kv.Delete(obj.Cache, k); err != nil {
			return err
		}
	}
	return nil
}
