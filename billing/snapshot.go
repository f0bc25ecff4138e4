/*
snapshot.go - Undo snapshot payloads

PURPOSE:
  Encoding of the opaque pre-mutation state stored in an undo entry: the
  invoice row, its allocation set, and (for split parents) its child rows.
  Restoring replays all three, which is what makes split and unsplit
  reversible alongside ordinary edits:

    undo of a split:   prior snapshot has no children, so current children
                       are tombstoned away
    undo of an unsplit: prior snapshot has children, so their tombstones
                       are cleared (child allocation rows survive the soft
                       delete untouched)

SEE ALSO:
  - undo/undo.go: Entry record holding the encoded payload
  - engine.go: captureSnapshot / restoreSnapshot
*/
package billing

import (
	"context"
	"encoding/json"
	"fmt"
)

// snapshotPayload is the JSON shape persisted in undo.Entry.Snapshot.
type snapshotPayload struct {
	Invoice     Invoice      `json:"invoice"`
	Allocations []Allocation `json:"allocations"`
	Children    []Invoice    `json:"children,omitempty"`
}

// captureSnapshot encodes the entity exactly as it exists pre-mutation.
// Children are captured only for split parents; for everything else the
// empty list records "no children existed".
func captureSnapshot(ctx context.Context, tx Tx, inv *Invoice) ([]byte, error) {
	allocs, err := tx.Allocations(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	payload := snapshotPayload{Invoice: *inv, Allocations: allocs}
	if inv.IsSplitParent {
		children, err := tx.Children(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			payload.Children = append(payload.Children, *c)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding undo snapshot: %w", err)
	}
	return raw, nil
}

func decodeSnapshot(raw []byte) (*snapshotPayload, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding undo snapshot: %w", err)
	}
	return &payload, nil
}
