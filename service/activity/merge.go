package activity

import (
	"reflect"
	"sort"
	"strconv"
)

// Reconcile applies incoming activities to a copy of existing, in order, and returns
// the merged collection together with the status changes of backend-linked entries.
//
// Rules per incoming activity:
//   - unknown signature: inserted as is
//   - known signature, different status: only the status is overwritten; a change is
//     emitted when the entry carries a backend id
//   - known signature, same status: no-op
//
// A confirmed entry is never moved back to pending. An incoming record carrying a
// backend id lends it to an entry that has none. Entries are never removed and
// existing is not modified.
func Reconcile(existing map[string]Activity, incoming []Activity) (map[string]Activity, []StatusChange) {
	merged := make(map[string]Activity, len(existing)+len(incoming))
	for sig, a := range existing {
		merged[sig] = a
	}

	var changes []StatusChange
	for _, in := range incoming {
		if in.Signature == "" {
			continue
		}

		cur, ok := merged[in.Signature]
		if !ok {
			merged[in.Signature] = in
			continue
		}

		adopted := false
		if !cur.HasID() && in.HasID() {
			id := *in.ID
			cur.ID = &id
			adopted = true
		}

		if in.Status == cur.Status || regresses(cur.Status, in.Status) {
			if adopted {
				merged[in.Signature] = cur
				if in.Status != cur.Status {
					// the backend is behind the chain
					changes = append(changes, changeFor(cur, cur.Status, cur.UpdatedAt))
				}
			}
			continue
		}

		cur.Status = in.Status
		merged[in.Signature] = cur
		if cur.HasID() {
			changes = append(changes, changeFor(cur, in.Status, in.UpdatedAt))
		}
	}

	return merged, changes
}

// Merge reconciles backend-derived activities first and on-chain activities second,
// so that a backend id is in place before chain status is applied. Changes are
// coalesced to the final status per activity id.
func Merge(existing map[string]Activity, backend, onchain []Activity) (map[string]Activity, []StatusChange) {
	incoming := make([]Activity, 0, len(backend)+len(onchain))
	incoming = append(incoming, backend...)
	incoming = append(incoming, onchain...)

	merged, changes := Reconcile(existing, incoming)
	return merged, coalesceChanges(changes)
}

// Touched returns the entries of merged that are absent from existing or differ
// from their existing record. It is the minimal set a store has to rewrite.
func Touched(existing, merged map[string]Activity) map[string]Activity {
	out := make(map[string]Activity)
	for sig, a := range merged {
		if prev, ok := existing[sig]; ok && reflect.DeepEqual(prev, a) {
			continue
		}
		out[sig] = a
	}
	return out
}

// SignaturesToFetch drops listed signatures that are already confirmed in existing.
// Confirmed transactions are terminal and never fetched again; pending and failed
// ones are re-checked. A signature whose transaction the node could not return was
// stored as a confirmed baseline record, so it is not fetched again either.
func SignaturesToFetch(existing map[string]Activity, listed []SignatureInfo) []SignatureInfo {
	out := make([]SignatureInfo, 0, len(listed))
	for _, info := range listed {
		if a, ok := existing[info.Signature]; ok && a.Status == StatusConfirmed {
			continue
		}
		out = append(out, info)
	}
	return out
}

// Sorted returns the collection as a slice, newest first by updatedAt, then slot.
func Sorted(collection map[string]Activity) []Activity {
	out := make([]Activity, 0, len(collection))
	for _, a := range collection {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		si, sj := slotOf(out[i]), slotOf(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].Signature < out[j].Signature
	})
	return out
}

func regresses(current, next Status) bool {
	return current == StatusConfirmed && next == StatusPending
}

func changeFor(a Activity, status Status, updatedAt int64) StatusChange {
	return StatusChange{
		ActivityID: *a.ID,
		Signature:  a.Signature,
		Status:     status,
		UpdatedAt:  updatedAt,
	}
}

func coalesceChanges(changes []StatusChange) []StatusChange {
	if len(changes) < 2 {
		return changes
	}
	last := make(map[string]int, len(changes))
	for i, c := range changes {
		last[c.ActivityID] = i
	}
	out := make([]StatusChange, 0, len(last))
	for i, c := range changes {
		if last[c.ActivityID] == i {
			out = append(out, c)
		}
	}
	return out
}

func slotOf(a Activity) uint64 {
	s, err := strconv.ParseUint(a.Slot, 10, 64)
	if err != nil {
		return 0
	}
	return s
}
