package files

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/opsfab/opsfab/types"
)

// RsyncOptions shapes an rsync invocation
type RsyncOptions struct {
	// Delete removes files on the target that are absent locally.
	Delete bool
	// Excludes are passed as --exclude patterns.
	Excludes []string
	// Extra are appended verbatim, for flags not covered above.
	Extra []string
	// Dir, when set, is the working directory for the invocation.
	Dir string
}

// Rsync pushes a local tree to a remote path over ssh. Src and dest
// follow rsync trailing-slash semantics.
func Rsync(ctx context.Context, host types.Host, src, dest string, opts RsyncOptions) error {
	args := []string{"-az"}
	if opts.Delete {
		args = append(args, "--delete")
	}
	for _, pattern := range opts.Excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, opts.Extra...)

	target := host.Addr + ":" + dest
	if host.User != "" {
		target = host.User + "@" + target
	}
	if host.Port != "" {
		args = append(args, "-e", "ssh -p "+host.Port)
	}
	args = append(args, src, target)

	cmd := exec.CommandContext(ctx, "rsync", args...)
	cmd.Dir = opts.Dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("rsync failed: %w: %s", err, out)
	}
	return nil
}
