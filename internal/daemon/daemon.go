// Package daemon runs the continuous inventory refresh loop: describe
// instances, record a new revision, update metrics, repeat.
package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opsfab/opsfab/inventory"
	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/telemetry"
	"github.com/opsfab/opsfab/types"
)

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
	Region   string
	DataDir  string
	Filter   types.InstanceFilter
}

// InstanceSource is the slice of the provider the daemon needs
type InstanceSource interface {
	Instances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error)
}

// Daemon refreshes the inventory on an interval
type Daemon struct {
	source       InstanceSource
	store        *inventory.Store
	log          *telemetry.Logger
	metrics      *Metrics
	interval     time.Duration
	region       string
	filter       types.InstanceFilter
	startTime    time.Time
	refreshCount atomic.Int64
}

// New creates a daemon backed by EC2, opening the inventory store
func New(ctx context.Context, cfg Config, log *telemetry.Logger) (*Daemon, error) {
	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return NewWithSource(cfg, aws.NewProvider(client, cfg.Region), log)
}

// NewWithSource creates a daemon over any instance source
func NewWithSource(cfg Config, source InstanceSource, log *telemetry.Logger) (*Daemon, error) {
	store, err := inventory.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Daemon{
		source:    source,
		store:     store,
		log:       log,
		metrics:   metrics,
		interval:  cfg.Interval,
		region:    cfg.Region,
		filter:    cfg.Filter,
		startTime: time.Now(),
	}, nil
}

// Close releases the inventory store
func (d *Daemon) Close() error {
	return d.store.Close()
}

// Run refreshes immediately, then on every tick until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	d.refresh(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

// refresh records one inventory revision. Failures are logged and
// counted, the loop keeps going.
func (d *Daemon) refresh(ctx context.Context) {
	start := time.Now()
	d.refreshCount.Add(1)

	instances, err := d.source.Instances(ctx, d.filter)
	if err != nil {
		d.log.Error().Err(err).Str("region", d.region).Msg("failed to describe instances")
		d.metrics.RecordRefresh(ctx, time.Since(start), "failed")
		return
	}

	// A filtered refresh is a partial view and must not mark the
	// instances it can't see gone.
	var rev int64
	if d.filter.Empty() {
		rev, err = d.store.RecordBatch(instances)
	} else {
		rev, err = d.store.RecordPartial(instances)
	}
	if err != nil {
		d.log.Error().Err(err).Msg("failed to record inventory revision")
		d.metrics.RecordRefresh(ctx, time.Since(start), "failed")
		return
	}

	live := len(types.FilterLive(instances))
	d.log.LogInventoryRefresh(ctx, live, rev)
	d.metrics.RecordRefresh(ctx, time.Since(start), "success")
	d.metrics.RecordInventory(ctx, int64(live), rev)
	if telemetry.InventoryRevision != nil {
		telemetry.InventoryRevision.Record(ctx, rev)
	}
	if telemetry.InstancesInInventory != nil {
		telemetry.InstancesInInventory.Record(ctx, int64(live))
	}
}

// RefreshCount reports how many refreshes have run
func (d *Daemon) RefreshCount() int64 {
	return d.refreshCount.Load()
}

// Health reports the daemon's liveness
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Uptime:    int64(time.Since(d.startTime).Seconds()),
		Refreshes: d.refreshCount.Load(),
		Revision:  d.store.LastRevision(),
	}
}

// HealthStatus is what the health endpoint serves
type HealthStatus struct {
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime_seconds"`
	Refreshes int64  `json:"refreshes"`
	Revision  int64  `json:"inventory_revision"`
}
