package services

import (
	"context"
	"fmt"

	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/venv"
)

// Supervisord manages a supervisord install and its programs
type Supervisord struct {
	// ConfFile is the main config, default /etc/supervisord.conf.
	ConfFile string
	// IncludeDir holds per-program configs, default /etc/supervisor.d.
	IncludeDir string
}

// NewSupervisord returns a Supervisord with conventional paths
func NewSupervisord() *Supervisord {
	return &Supervisord{
		ConfFile:   "/etc/supervisord.conf",
		IncludeDir: "/etc/supervisor.d",
	}
}

// Install pip-installs supervisor into env and creates the include dir
func (s *Supervisord) Install(ctx context.Context, r remote.Runner, env *venv.Env) error {
	if err := env.InstallPackages(ctx, r, "supervisor"); err != nil {
		return err
	}
	if _, err := r.Sudo(ctx, "mkdir", "-p", s.IncludeDir); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.IncludeDir, err)
	}
	return nil
}

// Conf renders the main supervisord config from a local template
func (s *Supervisord) Conf(ctx context.Context, r remote.Runner, localPath string, data any) error {
	return confInclude(ctx, r, localPath, s.ConfFile, data)
}

// ConfInclude renders a per-program config into the include dir
func (s *Supervisord) ConfInclude(ctx context.Context, r remote.Runner, localPath string, data any) error {
	return confInclude(ctx, r, localPath, s.IncludeDir, data)
}

// Reload reloads the main config and restarts everything under it
func (s *Supervisord) Reload(ctx context.Context, r remote.Runner) error {
	if out, err := r.Sudo(ctx, "supervisorctl", "-c", s.ConfFile, "reload"); err != nil {
		return fmt.Errorf("failed to reload supervisord: %w: %s", err, out)
	}
	return nil
}

// ReloadProgram picks up config changes for one program and restarts
// it, leaving the other programs running
func (s *Supervisord) ReloadProgram(ctx context.Context, r remote.Runner, program string) error {
	steps := [][]string{
		{"reread"},
		{"stop", program},
		{"remove", program},
		{"add", program},
		{"start", program},
	}
	for _, step := range steps {
		args := append([]string{"-c", s.ConfFile}, step...)
		if out, err := r.Sudo(ctx, "supervisorctl", args...); err != nil {
			return fmt.Errorf("failed to %s %s: %w: %s", step[0], program, err, out)
		}
	}
	return nil
}

// Status returns supervisorctl status output for a program
func (s *Supervisord) Status(ctx context.Context, r remote.Runner, program string) (string, error) {
	out, err := r.Sudo(ctx, "supervisorctl", "-c", s.ConfFile, "status", program)
	if err != nil {
		return "", fmt.Errorf("failed to get status of %s: %w", program, err)
	}
	return out, nil
}
