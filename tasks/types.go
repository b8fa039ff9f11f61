package tasks

import (
	"context"
	"time"

	"github.com/opsfab/opsfab/config"
	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/telemetry"
	"github.com/opsfab/opsfab/types"
)

// Task is a named unit of deployment work, run once per host
type Task struct {
	Name string
	Desc string
	// Destructive tasks are skipped unless AllowDestructive is set.
	Destructive bool
	Fn          func(ctx context.Context, host *HostContext) error
}

// HostContext is everything a task needs to act on one host
type HostContext struct {
	Host    types.Host
	Env     *config.Environment
	Runner  remote.Runner
	Log     *telemetry.Logger
	Journal *runlog.Journal
}

// Options configure the engine
type Options struct {
	DryRun            bool          `json:"dry_run"`
	SkipConfirmation  bool          `json:"skip_confirmation"`
	AllowDestructive  bool          `json:"allow_destructive"`
	ContinueOnFailure bool          `json:"continue_on_failure"`
	Timeout           time.Duration `json:"timeout"`
}

// RunResult contains the outcome of running tasks across hosts
type RunResult struct {
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Duration        time.Duration     `json:"duration"`
	TotalRuns       int               `json:"total_runs"`
	SuccessfulCount int               `json:"successful_count"`
	FailedCount     int               `json:"failed_count"`
	SkippedCount    int               `json:"skipped_count"`
	Results         []SingleRunResult `json:"results"`
	PartialFailure  bool              `json:"partial_failure"`
}

// SingleRunResult contains the outcome of one task on one host
type SingleRunResult struct {
	Task       string        `json:"task"`
	Host       string        `json:"host"`
	Status     RunStatus     `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
}

// RunStatus tracks the status of a task run
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
)

// DryRunResult lists what a run would do
type DryRunResult struct {
	TotalRuns       int          `json:"total_runs"`
	SafeRuns        int          `json:"safe_runs"`
	DestructiveRuns int          `json:"destructive_runs"`
	BlockedRuns     []BlockedRun `json:"blocked_runs"`
}

// BlockedRun is a task/host pair a run would refuse
type BlockedRun struct {
	Task   string `json:"task"`
	Host   string `json:"host"`
	Reason string `json:"reason"`
}

// Confirmer asks before destructive tasks run
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}
