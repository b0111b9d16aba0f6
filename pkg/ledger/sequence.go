package ledger

import "github.com/mesh-intelligence/labledger/pkg/types"

// Sequence hands out dense resource IDs starting at a given value. It is
// owned by one Ledger and guarded by the ledger's writer lock.
type Sequence struct {
	next uint64
}

// NewSequence returns a sequence whose first ID is start.
func NewSequence(start uint64) *Sequence {
	return &Sequence{next: start}
}

// Peek returns the ID the next Advance will confirm.
func (s *Sequence) Peek() types.ResourceID {
	return types.ResourceID(s.next)
}

// Advance consumes the current ID. Called only after the resource using it
// has been committed, so a failed create never leaves a gap.
func (s *Sequence) Advance() {
	s.next++
}
