package cellsearch

import (
	"net/http"
	"time"

	"github.com/labx-platform/testbed/pkg/serrors"
)

type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepRunning StepStatus = "RUNNING"
	StepSuccess StepStatus = "SUCCESS"
	StepStopped StepStatus = "STOPPED"
)

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunStopped   RunStatus = "STOPPED"
)

type Step struct {
	StepID      string     `json:"stepId"`
	StepNumber  int        `json:"stepNumber"`
	StepName    string     `json:"stepName"`
	Layer       string     `json:"layer"`
	Direction   string     `json:"direction"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Run struct {
	ID          string     `json:"id"`
	TestCaseID  string     `json:"testCaseId"`
	Status      RunStatus  `json:"status"`
	CurrentStep int        `json:"currentStep"`
	Steps       []Step     `json:"steps"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

func (r Run) Clone() Run {
	out := r
	out.Steps = make([]Step, len(r.Steps))
	copy(out.Steps, r.Steps)
	return out
}

// StepEvent is the CELL_SEARCH_STEP payload.
type StepEvent struct {
	RunID      string `json:"runId"`
	TestCaseID string `json:"testCaseId"`
	Step       Step   `json:"step"`
	Detail     any    `json:"stepDetail,omitempty"`
}

var (
	ErrNotFound     = serrors.NewHTTPError(http.StatusNotFound, "CELL_SEARCH_NOT_FOUND", "cell search run not found")
	ErrInvalidState = serrors.NewHTTPError(http.StatusConflict, "CELL_SEARCH_INVALID_STATE", "cell search run is not running")
)
