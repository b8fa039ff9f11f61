package tasks

import (
	"context"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/telemetry"
)

// swapInstruments points the command/upload instruments at a manual
// reader so the test can collect what was recorded.
func swapInstruments(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	commands, err := meter.Int64Counter("opsfab.commands.executed")
	if err != nil {
		t.Fatalf("counter error = %v", err)
	}
	duration, err := meter.Float64Histogram("opsfab.command.duration")
	if err != nil {
		t.Fatalf("histogram error = %v", err)
	}
	uploads, err := meter.Int64Counter("opsfab.uploads.total")
	if err != nil {
		t.Fatalf("counter error = %v", err)
	}

	prevCommands := telemetry.CommandsExecuted
	prevDuration := telemetry.CommandDuration
	prevUploads := telemetry.UploadsTotal
	telemetry.CommandsExecuted = commands
	telemetry.CommandDuration = duration
	telemetry.UploadsTotal = uploads
	t.Cleanup(func() {
		telemetry.CommandsExecuted = prevCommands
		telemetry.CommandDuration = prevDuration
		telemetry.UploadsTotal = prevUploads
	})

	return reader
}

func collectByName(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestInstrumentedRunnerRecordsCommands(t *testing.T) {
	reader := swapInstruments(t)
	ctx := context.Background()

	rec := remote.NewRecorder()
	runner := instrumentRunner(rec)

	if _, err := runner.Run(ctx, "echo", "hi"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := runner.Sudo(ctx, "yum", "-y", "install", "nginx"); err != nil {
		t.Fatalf("Sudo() error = %v", err)
	}

	if len(rec.Commands) != 2 {
		t.Fatalf("commands = %v, want 2 passed through", rec.Commands)
	}
	if rec.Commands[1] != "sudo yum -y install nginx" {
		t.Errorf("sudo command = %q", rec.Commands[1])
	}

	byName := collectByName(t, reader)

	counter, ok := byName["opsfab.commands.executed"]
	if !ok {
		t.Fatal("command counter not recorded")
	}
	var total int64
	for _, dp := range counter.Data.(metricdata.Sum[int64]).DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("commands executed = %d, want 2", total)
	}

	duration, ok := byName["opsfab.command.duration"]
	if !ok {
		t.Fatal("command duration not recorded")
	}
	var count uint64
	for _, dp := range duration.Data.(metricdata.Histogram[float64]).DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("duration samples = %d, want 2", count)
	}
}

func TestInstrumentedRunnerRecordsUploads(t *testing.T) {
	reader := swapInstruments(t)
	ctx := context.Background()

	rec := remote.NewRecorder()
	runner := instrumentRunner(rec)

	if err := runner.Put(ctx, strings.NewReader("content"), "/srv/app/conf", 0644); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if rec.Uploads["/srv/app/conf"] != "content" {
		t.Errorf("upload not passed through: %v", rec.Uploads)
	}

	byName := collectByName(t, reader)
	uploads, ok := byName["opsfab.uploads.total"]
	if !ok {
		t.Fatal("upload counter not recorded")
	}
	dps := uploads.Data.(metricdata.Sum[int64]).DataPoints
	if len(dps) != 1 || dps[0].Value != 1 {
		t.Errorf("uploads = %v, want one upload", dps)
	}
}

func TestInstrumentedRunnerNilInstruments(t *testing.T) {
	prevCommands := telemetry.CommandsExecuted
	prevDuration := telemetry.CommandDuration
	prevUploads := telemetry.UploadsTotal
	telemetry.CommandsExecuted = nil
	telemetry.CommandDuration = nil
	telemetry.UploadsTotal = nil
	t.Cleanup(func() {
		telemetry.CommandsExecuted = prevCommands
		telemetry.CommandDuration = prevDuration
		telemetry.UploadsTotal = prevUploads
	})

	rec := remote.NewRecorder()
	runner := instrumentRunner(rec)

	// Without InitOTEL the instruments are nil; commands still run.
	if _, err := runner.Run(context.Background(), "uptime"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.Commands) != 1 {
		t.Errorf("commands = %v", rec.Commands)
	}
}
