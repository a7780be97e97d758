package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abhisek/prepcoach/internal/store"
)

// DefaultSnapshotKeep is how many snapshots per journey survive a save.
const DefaultSnapshotKeep = 10

// StoreRepository persists progress trees as JSON snapshots in the local
// store, keeping a bounded history per journey.
type StoreRepository struct {
	snaps     store.SnapshotRepo
	keep      int
	namespace string
}

// NewStoreRepository wraps a snapshot repository. keep <= 0 uses
// DefaultSnapshotKeep.
func NewStoreRepository(snaps store.SnapshotRepo, keep int) *StoreRepository {
	if keep <= 0 {
		keep = DefaultSnapshotKeep
	}
	return &StoreRepository{snaps: snaps, keep: keep}
}

// ForLearner returns a repository whose snapshots are kept apart from
// every other learner's. The server uses one per authenticated learner.
func (r *StoreRepository) ForLearner(learnerID string) *StoreRepository {
	c := *r
	c.namespace = learnerID
	return &c
}

func (r *StoreRepository) key(journeyID string) string {
	if r.namespace == "" {
		return journeyID
	}
	return r.namespace + "/" + journeyID
}

// LoadProgress returns the newest snapshot of the journey, or nil when
// none exists.
func (r *StoreRepository) LoadProgress(ctx context.Context, journeyID string) (*JourneyProgress, error) {
	snap, err := r.snaps.Latest(ctx, r.key(journeyID))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	var j JourneyProgress
	if err := json.Unmarshal(snap.Data, &j); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", snap.Sequence, err)
	}
	return &j, nil
}

// SaveProgress appends a snapshot and prunes older ones.
func (r *StoreRepository) SaveProgress(ctx context.Context, p *JourneyProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	key := r.key(p.JourneyID)
	if err := r.snaps.Save(ctx, &store.Snapshot{JourneyID: key, Data: data}); err != nil {
		return err
	}
	return r.snaps.Prune(ctx, key, r.keep)
}
