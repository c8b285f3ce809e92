package agent

import "context"

// NullCheckpointer is a no-op implementation
type NullCheckpointer struct{}

var _ Checkpointer = (*NullCheckpointer)(nil)

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) Save(ctx context.Context, state *State, stepName string, iteration int, metadata map[string]any) (string, error) {
	return "", nil
}

func (c *NullCheckpointer) Load(ctx context.Context, id string) (*CheckpointRecord, error) {
	return nil, ErrCheckpointNotFound
}

func (c *NullCheckpointer) List(ctx context.Context) ([]*CheckpointSummary, error) {
	return []*CheckpointSummary{}, nil
}

func (c *NullCheckpointer) Delete(ctx context.Context, id string) (bool, error) {
	return false, nil
}
