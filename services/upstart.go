package services

import (
	"context"
	"fmt"

	"github.com/opsfab/opsfab/remote"
)

// Upstart manages upstart jobs, for targets old enough to run it
type Upstart struct {
	// ConfDir holds job configs, default /etc/init.
	ConfDir string
}

// NewUpstart returns an Upstart with conventional paths
func NewUpstart() *Upstart {
	return &Upstart{ConfDir: "/etc/init"}
}

// ConfProgram renders a job config into the conf dir
func (u *Upstart) ConfProgram(ctx context.Context, r remote.Runner, localPath string, data any) error {
	return confInclude(ctx, r, localPath, u.ConfDir, data)
}

// ReloadProgram reloads job configuration and restarts a job. The stop
// fails when the job isn't running, which is fine.
func (u *Upstart) ReloadProgram(ctx context.Context, r remote.Runner, program string) error {
	if out, err := r.Sudo(ctx, "initctl", "reload-configuration"); err != nil {
		return fmt.Errorf("failed to reload upstart configuration: %w: %s", err, out)
	}

	_, _ = r.Sudo(ctx, "initctl", "stop", program)

	if out, err := r.Sudo(ctx, "initctl", "start", program); err != nil {
		return fmt.Errorf("failed to start %s: %w: %s", program, err, out)
	}
	return nil
}
