package timer

// State is the interface that all timer states must implement
type State interface {
	Name() string
}

// State names
const (
	NameIdle           = "idle"
	NameRunning        = "running"
	NameRestorePending = "restore_pending"
)

// IdleState - no wait in progress
type IdleState struct{}

func (s *IdleState) Name() string { return NameIdle }
func (s *IdleState) ToRunning() *RunningState {
	return &RunningState{}
}

// RunningState - a wait is open and being timed
type RunningState struct{}

func (s *RunningState) Name() string { return NameRunning }
func (s *RunningState) ToIdle() *IdleState {
	return &IdleState{}
}

// RestorePendingState - a previous process exited while a wait was running
type RestorePendingState struct{}

func (s *RestorePendingState) Name() string { return NameRestorePending }
func (s *RestorePendingState) ToRunning() *RunningState {
	return &RunningState{}
}
func (s *RestorePendingState) ToIdle() *IdleState {
	return &IdleState{}
}

// Helper to track state transitions for testing
type StateRecorder struct {
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	return r.path
}
