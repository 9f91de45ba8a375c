package store

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	// SessionAbandoned is set only when an active session is archived to make
	// room for a new one.
	SessionAbandoned SessionStatus = "abandoned"
)

// StepStatus is the state of a single checklist step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
	StepFailed     StepStatus = "failed"
)

// Valid reports whether s is one of the known step statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepDone, StepFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the step lifecycle.
func (s StepStatus) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// LogLevel classifies a log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelAudit LogLevel = "AUDIT"
)

// Session is one run of the checklist against a work order.
type Session struct {
	ID           int64
	OrderNo      string
	OperatorName string
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       SessionStatus
}

// Step is the per-session tracked unit of work for one checklist item.
type Step struct {
	ID                 int64
	SessionID          int64
	BlockIndex         int
	ItemIndex          int
	Text               string
	Hint               string
	Critical           bool
	Status             StepStatus
	StartedAt          *time.Time
	CompletedAt        *time.Time
	DurationSec        *int64
	Note               string
	OverrideByMaster   bool
	OverrideMasterName string
}

// StepSeed describes one step to create when seeding a session.
type StepSeed struct {
	BlockIndex int
	ItemIndex  int
	Text       string
	Hint       string
	Critical   bool
}

// StepVersion is an immutable record of one status change.
type StepVersion struct {
	ID        int64
	StepID    int64
	ChangedAt time.Time
	OldStatus StepStatus
	NewStatus StepStatus
	Note      string
}

// Photo is an image attached to a step.
type Photo struct {
	ID       int64
	StepID   int64
	FilePath string
	AddedAt  time.Time
}

// LogEntry is one row of the process-wide event/audit stream.
type LogEntry struct {
	ID      int64
	TS      time.Time
	Level   LogLevel
	Action  string
	Details map[string]any
}

// LogFilter narrows ListLogs results. Zero values match everything.
type LogFilter struct {
	Level  LogLevel
	Action string
	Limit  int
}

// Report is one generated document.
type Report struct {
	ID        int64
	SessionID int64
	OrderNo   string // joined from sessions on read
	Seq       int64
	FilePath  string
	CreatedAt time.Time
}

// Override records the supervisory authorization attached to a step change.
type Override struct {
	MasterName string
}

// StepChange is a status mutation applied atomically by ApplyStepChange.
//
// NewStatus equal to the current status annotates without transitioning.
// Note replaces the stored note when SetNote is true.
type StepChange struct {
	StepID    int64
	NewStatus StepStatus
	Note      string
	SetNote   bool

	// Override, when set, marks the step as master-overridden.
	Override *Override

	// Log, when set, is appended in the same transaction.
	Log *LogRecord
}

// LogRecord is a log entry to append.
type LogRecord struct {
	Level   LogLevel
	Action  string
	Details map[string]any
}
