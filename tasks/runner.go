package tasks

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/telemetry"
)

// instrumentedRunner counts and times every command and upload going
// through a host's runner.
type instrumentedRunner struct {
	runner remote.Runner
}

func instrumentRunner(r remote.Runner) remote.Runner {
	return &instrumentedRunner{runner: r}
}

func (r *instrumentedRunner) Run(ctx context.Context, cmd string, args ...string) (string, error) {
	start := time.Now()
	out, err := r.runner.Run(ctx, cmd, args...)
	recordCommand(ctx, cmd, false, time.Since(start), err)
	return out, err
}

func (r *instrumentedRunner) Sudo(ctx context.Context, cmd string, args ...string) (string, error) {
	start := time.Now()
	out, err := r.runner.Sudo(ctx, cmd, args...)
	recordCommand(ctx, cmd, true, time.Since(start), err)
	return out, err
}

func (r *instrumentedRunner) RunStreaming(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	start := time.Now()
	err := r.runner.RunStreaming(ctx, cmd, args, stdout, stderr)
	recordCommand(ctx, cmd, false, time.Since(start), err)
	return err
}

func (r *instrumentedRunner) Put(ctx context.Context, src io.Reader, dest string, mode os.FileMode) error {
	err := r.runner.Put(ctx, src, dest, mode)
	if err == nil && telemetry.UploadsTotal != nil {
		telemetry.UploadsTotal.Add(ctx, 1)
	}
	return err
}

func (r *instrumentedRunner) Get(ctx context.Context, src string, dst io.Writer) error {
	return r.runner.Get(ctx, src, dst)
}

func (r *instrumentedRunner) Exists(ctx context.Context, path string) (bool, error) {
	return r.runner.Exists(ctx, path)
}

func recordCommand(ctx context.Context, cmd string, sudo bool, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("command", cmd),
		attribute.Bool("sudo", sudo),
		attribute.String("status", status),
	)
	if telemetry.CommandsExecuted != nil {
		telemetry.CommandsExecuted.Add(ctx, 1, attrs)
	}
	if telemetry.CommandDuration != nil {
		telemetry.CommandDuration.Record(ctx, duration.Seconds(), attrs)
	}
}
