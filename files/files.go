// Package files provides file helpers for deployment targets: uploads
// with backup and mode handling, template rendering, shebang rewriting
// and rsync invocation.
package files

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/opsfab/opsfab/remote"
)

// UploadOptions controls how a file lands on the target
type UploadOptions struct {
	// Sudo stages the upload through a temp path and installs it with sudo.
	Sudo bool
	// Backup copies an existing destination to dest.bak first.
	Backup bool
	// Mode is applied to the destination when non-zero.
	Mode os.FileMode
	// MirrorMode applies the local file's mode when Mode is zero.
	MirrorMode bool
}

// SetMode changes the mode of a path on the target
func SetMode(ctx context.Context, r remote.Runner, p string, mode os.FileMode, sudo bool) error {
	octal := fmt.Sprintf("%04o", mode.Perm())
	var err error
	if sudo {
		_, err = r.Sudo(ctx, "chmod", octal, p)
	} else {
		_, err = r.Run(ctx, "chmod", octal, p)
	}
	if err != nil {
		return fmt.Errorf("failed to chmod %s: %w", p, err)
	}
	return nil
}

// Backup copies p to p.bak on the target if p exists
func Backup(ctx context.Context, r remote.Runner, p string, sudo bool) error {
	exists, err := r.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if !exists {
		return nil
	}

	if sudo {
		_, err = r.Sudo(ctx, "cp", p, p+".bak")
	} else {
		_, err = r.Run(ctx, "cp", p, p+".bak")
	}
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", p, err)
	}
	return nil
}

// IsDir reports whether p is a directory on the target
func IsDir(ctx context.Context, r remote.Runner, p string) bool {
	_, err := r.Run(ctx, "test", "-d", p)
	return err == nil
}

// NormalizeDest resolves dest to a file path: when dest is an existing
// directory, the basename of src is appended. Useful because uploads
// from memory can't rely on the transport to do this.
func NormalizeDest(ctx context.Context, r remote.Runner, src, dest string) string {
	if IsDir(ctx, r, dest) {
		return path.Join(dest, path.Base(src))
	}
	return dest
}

// MkdirAll creates directories on the target, parents included
func MkdirAll(ctx context.Context, r remote.Runner, sudo bool, dirs ...string) error {
	args := append([]string{"-p"}, dirs...)
	var err error
	if sudo {
		_, err = r.Sudo(ctx, "mkdir", args...)
	} else {
		_, err = r.Run(ctx, "mkdir", args...)
	}
	if err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

// Upload copies a local file to dest on the target
func Upload(ctx context.Context, r remote.Runner, localPath, dest string, opts UploadOptions) error {
	content, err := os.ReadFile(localPath) // #nosec G304 -- caller chooses the source
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	if opts.MirrorMode && opts.Mode == 0 {
		info, err := os.Stat(localPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", localPath, err)
		}
		opts.Mode = info.Mode().Perm()
	}

	dest = NormalizeDest(ctx, r, localPath, dest)
	return UploadBytes(ctx, r, content, dest, opts)
}

// UploadBytes writes content to dest on the target. Sudo uploads are
// staged under /tmp and installed with sudo cp, since the transport
// runs as the login user.
func UploadBytes(ctx context.Context, r remote.Runner, content []byte, dest string, opts UploadOptions) error {
	if opts.Backup {
		if err := Backup(ctx, r, dest, opts.Sudo); err != nil {
			return err
		}
	}

	if !opts.Sudo {
		if err := r.Put(ctx, bytes.NewReader(content), dest, opts.Mode); err != nil {
			return fmt.Errorf("failed to upload %s: %w", dest, err)
		}
		return nil
	}

	staging := fmt.Sprintf("/tmp/opsfab-%d-%s", time.Now().UnixNano(), path.Base(dest))
	if err := r.Put(ctx, bytes.NewReader(content), staging, 0600); err != nil {
		return fmt.Errorf("failed to stage %s: %w", dest, err)
	}

	if _, err := r.Sudo(ctx, "cp", staging, dest); err != nil {
		return fmt.Errorf("failed to install %s: %w", dest, err)
	}
	if _, err := r.Run(ctx, "rm", "-f", staging); err != nil {
		return fmt.Errorf("failed to remove staging file %s: %w", staging, err)
	}

	if opts.Mode != 0 {
		return SetMode(ctx, r, dest, opts.Mode, true)
	}
	return nil
}

// FixGroupPerms normalizes permissions under p for shared group work:
// setgid on directories, group write wherever the user has write, and
// group ownership when group is non-empty.
//
// Careful with ssh keys: group-writable ~/.ssh makes sshd refuse them.
func FixGroupPerms(ctx context.Context, r remote.Runner, p, group string) error {
	if group != "" {
		if _, err := r.Run(ctx, "find", p, "-type", "d", "-not", "-group", group, "-exec", "chgrp", group, "{}", ";"); err != nil {
			return fmt.Errorf("failed to chgrp under %s: %w", p, err)
		}
	}
	if _, err := r.Run(ctx, "find", p, "-type", "d", "-not", "-perm", "-g+s", "-exec", "chmod", "g+s", "{}", ";"); err != nil {
		return fmt.Errorf("failed to set setgid under %s: %w", p, err)
	}
	if _, err := r.Run(ctx, "find", p, "-perm", "-u+w", "-not", "-perm", "-g+w", "-exec", "chmod", "g+w", "{}", ";"); err != nil {
		return fmt.Errorf("failed to add group write under %s: %w", p, err)
	}
	return nil
}
