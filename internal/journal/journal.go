package journal

// Recorder is the write side of the journal used by the story service.
// Consumers should depend on this interface rather than the concrete *DB type
// so a nil-safe no-op can stand in when the journal is disabled.
type Recorder interface {
	BeginRun(direction string) (string, error)
	RecordEvent(runID, kind, storyID string) error
	FinishRun(runID string, summary Summary, runErr error) error
}

// Reader is the read side used by the history command and the API.
type Reader interface {
	ListRuns(limit int) ([]Run, error)
	RunEvents(runID string) ([]Event, error)
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ Recorder = (*DB)(nil)
	_ Reader   = (*DB)(nil)
)

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) BeginRun(string) (string, error) { return "", nil }

func (Nop) RecordEvent(string, string, string) error { return nil }

func (Nop) FinishRun(string, Summary, error) error { return nil }
