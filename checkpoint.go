package agent

import "time"

// CheckpointRecord is an immutable snapshot of a run.
type CheckpointRecord struct {
	ID        string         `json:"checkpoint_id"`
	State     *State         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	StepName  string         `json:"step_name"`
	Iteration int            `json:"iteration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CheckpointSummary describes a stored checkpoint without its state.
type CheckpointSummary struct {
	ID        string         `json:"checkpoint_id"`
	Location  string         `json:"location"`
	Timestamp time.Time      `json:"timestamp"`
	StepName  string         `json:"step_name"`
	Iteration int            `json:"iteration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// checkpointIndex is the persisted source of truth for which checkpoints
// exist and in what order they were saved.
type checkpointIndex struct {
	Checkpoints map[string]*CheckpointSummary `json:"checkpoints"`
	Order       []string                      `json:"order"`
	Sequence    uint64                        `json:"sequence"`
}

func newCheckpointIndex() *checkpointIndex {
	return &checkpointIndex{
		Checkpoints: map[string]*CheckpointSummary{},
		Order:       []string{},
	}
}

func (idx *checkpointIndex) add(summary *CheckpointSummary) {
	idx.Checkpoints[summary.ID] = summary
	idx.Order = append(idx.Order, summary.ID)
}

func (idx *checkpointIndex) remove(id string) (*CheckpointSummary, bool) {
	summary, ok := idx.Checkpoints[id]
	if !ok {
		return nil, false
	}
	delete(idx.Checkpoints, id)
	order := idx.Order[:0]
	for _, existing := range idx.Order {
		if existing != id {
			order = append(order, existing)
		}
	}
	idx.Order = order
	return summary, true
}
