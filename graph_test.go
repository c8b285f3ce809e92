package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func noopNode(ctx context.Context, s *State) error { return nil }

func TestNewGraphValidation(t *testing.T) {
	t.Run("requires nodes", func(t *testing.T) {
		_, err := NewGraph(StepStart)
		require.ErrorContains(t, err, "at least one node")
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := NewGraph(StepStart, &Node{Name: StepReason, Run: noopNode, Next: StepEnd})
		require.ErrorContains(t, err, "entry node")
	})

	t.Run("duplicate node", func(t *testing.T) {
		_, err := NewGraph(StepStart,
			&Node{Name: StepStart, Run: noopNode, Next: StepEnd},
			&Node{Name: StepStart, Run: noopNode, Next: StepEnd})
		require.ErrorContains(t, err, "duplicate node")
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		_, err := NewGraph(StepStart, &Node{Name: StepStart, Run: noopNode, Next: StepReason})
		require.ErrorContains(t, err, "unknown node")
	})

	t.Run("needs exactly one edge kind", func(t *testing.T) {
		_, err := NewGraph(StepStart, &Node{Name: StepStart, Run: noopNode})
		require.ErrorContains(t, err, "exactly one")

		_, err = NewGraph(StepStart, &Node{
			Name:  StepStart,
			Run:   noopNode,
			Next:  StepEnd,
			Route: func(s *State) StepName { return StepEnd },
		})
		require.ErrorContains(t, err, "exactly one")
	})

	t.Run("end is reserved", func(t *testing.T) {
		_, err := NewGraph(StepEnd, &Node{Name: StepEnd, Run: noopNode, Next: StepEnd})
		require.ErrorContains(t, err, "invalid node name")
	})
}

func TestGraphNext(t *testing.T) {
	g, err := NewGraph(StepStart,
		&Node{Name: StepStart, Run: noopNode, Next: StepReason},
		&Node{Name: StepReason, Run: noopNode, Route: func(s *State) StepName { return s.NextStep }})
	require.NoError(t, err)
	require.Equal(t, StepStart, g.Entry())

	next, err := g.Next(StepStart, NewState("q", 1))
	require.NoError(t, err)
	require.Equal(t, StepReason, next)

	s := NewState("q", 1)
	s.NextStep = StepEnd
	next, err = g.Next(StepReason, s)
	require.NoError(t, err)
	require.Equal(t, StepEnd, next)

	s.NextStep = StepAct
	_, err = g.Next(StepReason, s)
	require.ErrorContains(t, err, "routed to unknown node")

	_, err = g.Next(StepAnswer, s)
	require.ErrorContains(t, err, "unknown node")
}

func TestRouteAfterReason(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *State)
		want  StepName
	}{
		{"error wins over act", func(s *State) { s.Error = "x"; s.NextStep = StepAct }, StepAnswer},
		{"act", func(s *State) { s.NextStep = StepAct; s.IterationCount = 1 }, StepAct},
		{"answer", func(s *State) { s.NextStep = StepAnswer; s.IterationCount = 1 }, StepAnswer},
		{"cap reached", func(s *State) { s.NextStep = StepObserve; s.IterationCount = 3 }, StepAnswer},
		{"continue through checkpoint", func(s *State) { s.NextStep = StepObserve; s.IterationCount = 1 }, StepCheckpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("q", 3)
			tt.setup(s)
			require.Equal(t, tt.want, RouteAfterReason(s))
		})
	}
}

func TestRouteAfterObserve(t *testing.T) {
	route := RouteAfterObserve(5)
	tests := []struct {
		name  string
		setup func(s *State)
		want  StepName
	}{
		{"error", func(s *State) { s.Error = "x"; s.IterationCount = 5 }, StepAnswer},
		{"answer requested", func(s *State) { s.NextStep = StepAnswer; s.IterationCount = 5 }, StepAnswer},
		{"cap reached on a multiple of five", func(s *State) { s.NextStep = StepReason; s.IterationCount = 10 }, StepAnswer},
		{"periodic checkpoint", func(s *State) { s.NextStep = StepReason; s.IterationCount = 5 }, StepCheckpoint},
		{"already checkpointed this iteration", func(s *State) {
			s.NextStep = StepReason
			s.IterationCount = 5
			s.Metadata.LastCheckpointIteration = 5
		}, StepReason},
		{"ordinary iteration", func(s *State) { s.NextStep = StepReason; s.IterationCount = 4 }, StepReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("q", 10)
			tt.setup(s)
			require.Equal(t, tt.want, route(s))
		})
	}

	t.Run("disabled cadence", func(t *testing.T) {
		s := NewState("q", 10)
		s.NextStep = StepReason
		s.IterationCount = 5
		require.Equal(t, StepReason, RouteAfterObserve(-1)(s))
	})
}

func TestRouteAfterCheckpoint(t *testing.T) {
	s := NewState("q", 3)
	s.NextStep = StepReason
	require.Equal(t, StepReason, RouteAfterCheckpoint(s))
	s.NextStep = ""
	require.Equal(t, StepEnd, RouteAfterCheckpoint(s))
}
