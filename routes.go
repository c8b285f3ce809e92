package agent

// DefaultCheckpointEvery is the number of completed iterations between
// periodic checkpoints.
const DefaultCheckpointEvery = 5

// RouteAfterReason picks the successor of the reason step. Errors and
// termination take precedence over the proposed next step.
func RouteAfterReason(s *State) StepName {
	if s.Error != "" {
		return StepAnswer
	}
	switch s.NextStep {
	case StepAct:
		return StepAct
	case StepAnswer:
		return StepAnswer
	}
	if !s.ShouldContinue() {
		return StepAnswer
	}
	return StepCheckpoint
}

// RouteAfterObserve returns the router for the observe step. A periodic
// checkpoint is taken every n completed iterations, but only after the
// error and termination checks have passed.
func RouteAfterObserve(n int) Router {
	return func(s *State) StepName {
		if s.Error != "" {
			return StepAnswer
		}
		if s.NextStep == StepAnswer {
			return StepAnswer
		}
		if !s.ShouldContinue() {
			return StepAnswer
		}
		if checkpointDue(s, n) {
			return StepCheckpoint
		}
		return StepReason
	}
}

// RouteAfterCheckpoint ends the run once the answer step has finished and
// otherwise resumes the loop where the state points.
func RouteAfterCheckpoint(s *State) StepName {
	if s.NextStep == "" {
		return StepEnd
	}
	return s.NextStep
}

func checkpointDue(s *State, n int) bool {
	if n <= 0 || s.IterationCount == 0 {
		return false
	}
	return s.IterationCount%n == 0 && s.Metadata.LastCheckpointIteration != s.IterationCount
}
