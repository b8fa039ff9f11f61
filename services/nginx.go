package services

import (
	"context"
	"fmt"

	"github.com/opsfab/opsfab/remote"
)

// Nginx manages an nginx install and its site configs
type Nginx struct {
	// IncludeDir holds per-site configs, default /etc/nginx/conf.d.
	IncludeDir string
}

// NewNginx returns an Nginx with conventional paths
func NewNginx() *Nginx {
	return &Nginx{IncludeDir: "/etc/nginx/conf.d"}
}

// Install installs nginx from system packages
func (n *Nginx) Install(ctx context.Context, r remote.Runner) error {
	return InstallPackages(ctx, r, "nginx")
}

// Start starts nginx
func (n *Nginx) Start(ctx context.Context, r remote.Runner) error {
	if out, err := r.Sudo(ctx, "service", "nginx", "start"); err != nil {
		return fmt.Errorf("failed to start nginx: %w: %s", err, out)
	}
	return nil
}

// ConfInclude renders a site config into the include dir
func (n *Nginx) ConfInclude(ctx context.Context, r remote.Runner, localPath string, data any) error {
	return confInclude(ctx, r, localPath, n.IncludeDir, data)
}

// Reload reloads nginx without dropping connections
func (n *Nginx) Reload(ctx context.Context, r remote.Runner) error {
	if out, err := r.Sudo(ctx, "service", "nginx", "reload"); err != nil {
		return fmt.Errorf("failed to reload nginx: %w: %s", err, out)
	}
	return nil
}
