package workflow

import (
	"fmt"

	"github.com/nurpe/rental-contracts/internal/model"
)

// Replay folds a history from DRAFT using only the recorded transitions.
func Replay(history []model.HistoryEntry) (Snapshot, error) {
	s := Initial()
	for i, entry := range history {
		if entry.Seq != i+1 {
			return s, fmt.Errorf("%w: entry %d has seq %d", ErrHistoryCorrupt, i+1, entry.Seq)
		}
		if entry.From != s.State {
			return s, fmt.Errorf("%w: entry %d starts at %s, replay is at %s", ErrHistoryCorrupt, entry.Seq, entry.From, s.State)
		}
		next, err := Next(s, entry.Action)
		if err != nil {
			return s, fmt.Errorf("%w: entry %d: %v", ErrHistoryCorrupt, entry.Seq, err)
		}
		if next.State != entry.To {
			return s, fmt.Errorf("%w: entry %d records %s, table yields %s", ErrHistoryCorrupt, entry.Seq, entry.To, next.State)
		}
		s = next
	}
	return s, nil
}

// Verify checks that the stored state is exactly what the history replays to.
func Verify(p *model.ContractProcess) error {
	s, err := Replay(p.History)
	if err != nil {
		return err
	}
	if s != SnapshotOf(p) {
		return fmt.Errorf("%w: stored %+v, replayed %+v", ErrHistoryCorrupt, SnapshotOf(p), s)
	}
	return nil
}
