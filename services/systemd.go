package services

import (
	"context"
	"fmt"

	"github.com/opsfab/opsfab/remote"
)

// Systemd manages systemd units
type Systemd struct {
	// UnitDir holds unit files, default /etc/systemd/system.
	UnitDir string
}

// NewSystemd returns a Systemd with conventional paths
func NewSystemd() *Systemd {
	return &Systemd{UnitDir: "/etc/systemd/system"}
}

// InstallUnit renders a unit file into the unit dir and reloads the
// daemon so systemd sees it
func (s *Systemd) InstallUnit(ctx context.Context, r remote.Runner, localPath string, data any) error {
	if err := confInclude(ctx, r, localPath, s.UnitDir, data); err != nil {
		return err
	}
	return s.DaemonReload(ctx, r)
}

// DaemonReload makes systemd re-read unit files
func (s *Systemd) DaemonReload(ctx context.Context, r remote.Runner) error {
	if out, err := r.Sudo(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w: %s", err, out)
	}
	return nil
}

// Enable enables and starts a unit
func (s *Systemd) Enable(ctx context.Context, r remote.Runner, unit string) error {
	if out, err := r.Sudo(ctx, "systemctl", "enable", "--now", unit); err != nil {
		return fmt.Errorf("failed to enable %s: %w: %s", unit, err, out)
	}
	return nil
}

// Restart restarts a unit
func (s *Systemd) Restart(ctx context.Context, r remote.Runner, unit string) error {
	if out, err := r.Sudo(ctx, "systemctl", "restart", unit); err != nil {
		return fmt.Errorf("failed to restart %s: %w: %s", unit, err, out)
	}
	return nil
}

// Status returns the unit's status output
func (s *Systemd) Status(ctx context.Context, r remote.Runner, unit string) (string, error) {
	out, err := r.Sudo(ctx, "systemctl", "status", unit, "--no-pager")
	if err != nil {
		return "", fmt.Errorf("failed to get status of %s: %w", unit, err)
	}
	return out, nil
}
