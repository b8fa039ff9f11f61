package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalRunner executes commands on the local machine via os/exec.
// Useful for development and for rsync-style local staging.
type LocalRunner struct {
	// Dir, when set, is the working directory for commands.
	Dir string
}

func (r LocalRunner) Run(ctx context.Context, cmd string, args ...string) (string, error) {
	command := exec.CommandContext(ctx, cmd, args...)
	command.Dir = r.Dir
	out, err := command.CombinedOutput()
	return string(out), err
}

func (r LocalRunner) Sudo(ctx context.Context, cmd string, args ...string) (string, error) {
	return r.Run(ctx, "sudo", append([]string{cmd}, args...)...)
}

func (r LocalRunner) RunStreaming(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	command := exec.CommandContext(ctx, cmd, args...)
	command.Dir = r.Dir
	if stdout != nil {
		command.Stdout = stdout
	}
	if stderr != nil {
		command.Stderr = stderr
	}
	return command.Run()
}

func (r LocalRunner) Put(ctx context.Context, src io.Reader, dest string, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	// OpenFile mode is masked by umask, chmod to be exact
	return os.Chmod(dest, mode)
}

func (r LocalRunner) Get(ctx context.Context, src string, dst io.Writer) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return nil
}

func (r LocalRunner) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
