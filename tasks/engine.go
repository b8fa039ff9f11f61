// Package tasks runs deployment tasks across hosts, one host at a time,
// with confirmation gates, a dry-run mode and a run journal.
package tasks

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opsfab/opsfab/config"
	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/telemetry"
	"github.com/opsfab/opsfab/types"
)

// RunnerFactory builds a Runner for a host, letting tests substitute
// stubs for SSH
type RunnerFactory func(host types.Host, env *config.Environment) remote.Runner

// SSHRunnerFactory builds SSH runners from environment settings
func SSHRunnerFactory(host types.Host, env *config.Environment) remote.Runner {
	return remote.NewSSHRunner(host, env.Keyfile)
}

// Engine runs tasks across an environment's hosts
type Engine struct {
	env       *config.Environment
	runners   RunnerFactory
	journal   *runlog.Journal
	log       *telemetry.Logger
	confirmer Confirmer
	options   Options
}

// NewEngine creates an engine for one environment
func NewEngine(env *config.Environment, journal *runlog.Journal, log *telemetry.Logger, options Options) *Engine {
	return &Engine{
		env:     env,
		runners: SSHRunnerFactory,
		journal: journal,
		log:     log,
		options: options,
	}
}

// WithRunnerFactory overrides how runners are built
func (e *Engine) WithRunnerFactory(factory RunnerFactory) *Engine {
	e.runners = factory
	return e
}

// WithConfirmer sets the confirmation prompt
func (e *Engine) WithConfirmer(confirmer Confirmer) *Engine {
	e.confirmer = confirmer
	return e
}

// Run executes each task on every host in order. Tasks run to
// completion across all hosts before the next task starts, so a broken
// task stops early instead of half-deploying every host.
func (e *Engine) Run(ctx context.Context, taskList []Task) (*RunResult, error) {
	hosts, err := e.env.HostList()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hosts: %w", err)
	}

	if e.options.DryRun {
		return nil, fmt.Errorf("dry run requested, use DryRun instead")
	}

	result := &RunResult{
		StartTime: time.Now(),
		TotalRuns: len(taskList) * len(hosts),
		Results:   make([]SingleRunResult, 0, len(taskList)*len(hosts)),
	}

	for _, task := range taskList {
		stop, err := e.runTask(ctx, task, hosts, result)
		if err != nil {
			return result, err
		}
		if stop {
			break
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.PartialFailure = result.FailedCount > 0

	return result, nil
}

func (e *Engine) runTask(ctx context.Context, task Task, hosts []types.Host, result *RunResult) (stop bool, err error) {
	if skip, reason := e.shouldSkipTask(ctx, task); skip {
		for _, host := range hosts {
			single := SingleRunResult{
				Task:       task.Name,
				Host:       host.String(),
				Status:     StatusSkipped,
				StartTime:  time.Now(),
				EndTime:    time.Now(),
				SkipReason: reason,
			}
			result.Results = append(result.Results, single)
			result.SkippedCount++
			e.journalSkip(host.String(), task.Name, reason)
		}
		return false, nil
	}

	for _, host := range hosts {
		single := e.runOnHost(ctx, task, host)
		result.Results = append(result.Results, single)
		e.updateCounts(result, single)

		if single.Status == StatusFailed && !e.options.ContinueOnFailure {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) runOnHost(ctx context.Context, task Task, host types.Host) SingleRunResult {
	single := SingleRunResult{
		Task:      task.Name,
		Host:      host.String(),
		Status:    StatusFailed,
		StartTime: time.Now(),
	}

	ctx, span := telemetry.Tracer.Start(ctx, "task."+task.Name)
	defer span.End()
	span.SetAttributes(
		attribute.String("task", task.Name),
		attribute.String("host", host.String()),
	)

	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	e.log.LogTaskStart(ctx, task.Name, host.String())
	if err := e.journal.Append(runlog.EntryTaskStarted, host.String(), task.Name, nil); err != nil {
		return e.fail(&single, fmt.Errorf("failed to journal task start: %w", err))
	}

	hostCtx := &HostContext{
		Host:    host,
		Env:     e.env,
		Runner:  instrumentRunner(e.runners(host, e.env)),
		Log:     e.log,
		Journal: e.journal,
	}

	err := task.Fn(ctx, hostCtx)
	single.EndTime = time.Now()
	single.Duration = single.EndTime.Sub(single.StartTime)

	e.recordMetrics(ctx, task.Name, single.Duration, err)
	e.log.LogTaskEnd(ctx, task.Name, host.String(), err)

	if err != nil {
		single.Error = err.Error()
		if jerr := e.journal.AppendError(runlog.EntryTaskFailed, host.String(), task.Name, nil, err); jerr != nil {
			single.Error = fmt.Sprintf("%v (journal error: %v)", err, jerr)
		}
		return single
	}

	single.Status = StatusSuccess
	if err := e.journal.Append(runlog.EntryTaskCompleted, host.String(), task.Name, nil); err != nil {
		// the task succeeded, journal failure shouldn't undo that
		e.log.Warn().Err(err).Msg("task succeeded but journaling failed")
	}
	return single
}

// DryRun reports what Run would do without touching any host
func (e *Engine) DryRun(ctx context.Context, taskList []Task) (*DryRunResult, error) {
	hosts, err := e.env.HostList()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hosts: %w", err)
	}

	result := &DryRunResult{
		TotalRuns: len(taskList) * len(hosts),
	}

	for _, task := range taskList {
		for _, host := range hosts {
			if task.Destructive && !e.options.AllowDestructive {
				result.BlockedRuns = append(result.BlockedRuns, BlockedRun{
					Task:   task.Name,
					Host:   host.String(),
					Reason: "destructive tasks disabled",
				})
				continue
			}
			result.SafeRuns++
		}
		if task.Destructive {
			result.DestructiveRuns += len(hosts)
		}
	}

	return result, nil
}

// Helper methods

func (e *Engine) shouldSkipTask(ctx context.Context, task Task) (bool, string) {
	if !task.Destructive {
		return false, ""
	}
	if !e.options.AllowDestructive {
		return true, "destructive tasks disabled"
	}
	if e.options.SkipConfirmation {
		return false, ""
	}

	if e.confirmer == nil {
		return true, "confirmation required but no confirmer configured"
	}

	prompt := fmt.Sprintf("Run destructive task %q on %s?", task.Name, e.env.DeployRoot)
	confirmed, err := e.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return true, fmt.Sprintf("confirmation error: %v", err)
	}
	if !confirmed {
		return true, "user declined confirmation"
	}
	return false, ""
}

func (e *Engine) updateCounts(result *RunResult, single SingleRunResult) {
	switch single.Status {
	case StatusSuccess:
		result.SuccessfulCount++
	case StatusFailed:
		result.FailedCount++
	case StatusSkipped:
		result.SkippedCount++
	}
}

func (e *Engine) fail(single *SingleRunResult, err error) SingleRunResult {
	single.Status = StatusFailed
	single.Error = err.Error()
	single.EndTime = time.Now()
	single.Duration = single.EndTime.Sub(single.StartTime)
	return *single
}

func (e *Engine) journalSkip(host, task, reason string) {
	type skipData struct {
		Reason string `json:"reason"`
	}
	if err := e.journal.Append(runlog.EntrySkipped, host, task, skipData{Reason: reason}); err != nil {
		e.log.Warn().Err(err).Str("task", task).Msg("failed to journal skip")
	}
}

func (e *Engine) recordMetrics(ctx context.Context, task string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status),
	)
	if telemetry.TasksExecuted != nil {
		telemetry.TasksExecuted.Add(ctx, 1, attrs)
	}
	if telemetry.TaskDuration != nil {
		telemetry.TaskDuration.Record(ctx, duration.Seconds(), attrs)
	}
}
