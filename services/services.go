// Package services configures and controls the daemons a deployed app
// runs under: supervisord for the app process, nginx in front of it,
// with upstart or systemd keeping supervisord itself alive.
package services

import (
	"context"
	"fmt"

	"github.com/opsfab/opsfab/files"
	"github.com/opsfab/opsfab/remote"
)

// InstallPackages installs system packages with yum
func InstallPackages(ctx context.Context, r remote.Runner, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"-y", "install"}, packages...)
	if out, err := r.Sudo(ctx, "yum", args...); err != nil {
		return fmt.Errorf("failed to install packages: %w: %s", err, out)
	}
	return nil
}

// confInclude renders a local template into a daemon's include
// directory, backing up any previous version
func confInclude(ctx context.Context, r remote.Runner, localPath, includeDir string, data any) error {
	return files.UploadTemplate(ctx, r, localPath, includeDir, data, files.UploadOptions{
		Sudo:   true,
		Backup: true,
		Mode:   0644,
	})
}
