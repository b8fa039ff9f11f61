// Package venv manages Python virtualenvs on deployment targets.
package venv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/opsfab/opsfab/remote"
)

func readLocal(p string) (io.Reader, error) {
	content, err := os.ReadFile(p) // #nosec G304 -- caller chooses the source
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return bytes.NewReader(content), nil
}

// Env is a virtualenv rooted at a path on the target
type Env struct {
	// Root is the virtualenv directory, e.g. /srv/app/venv.
	Root string
	// Interpreter creates the env, defaults to python3.
	Interpreter string
	// BootstrapScript, when set, is a local virtualenv script uploaded
	// and used instead of the venv module. For targets whose python
	// predates it.
	BootstrapScript string
}

// New returns an Env using the venv module of interpreter
func New(root, interpreter string) *Env {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &Env{Root: root, Interpreter: interpreter}
}

// Bin returns the path of the env's bin directory
func (e *Env) Bin() string {
	return path.Join(e.Root, "bin")
}

// Python returns the path of the env's python interpreter
func (e *Env) Python() string {
	return path.Join(e.Root, "bin", "python")
}

// Pip returns the path of the env's pip
func (e *Env) Pip() string {
	return path.Join(e.Root, "bin", "pip")
}

// Exists reports whether the env has been created
func (e *Env) Exists(ctx context.Context, r remote.Runner) (bool, error) {
	return r.Exists(ctx, e.Python())
}

// Create builds the virtualenv. It fails if the env already exists,
// remove it first to rebuild.
func (e *Env) Create(ctx context.Context, r remote.Runner) error {
	exists, err := e.Exists(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to check virtualenv %s: %w", e.Root, err)
	}
	if exists {
		return fmt.Errorf("virtualenv already exists at %s", e.Root)
	}

	if _, err := r.Run(ctx, "mkdir", "-p", path.Dir(e.Root)); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", e.Root, err)
	}

	if e.BootstrapScript != "" {
		return e.bootstrap(ctx, r)
	}

	if out, err := r.Run(ctx, e.Interpreter, "-m", "venv", e.Root); err != nil {
		return fmt.Errorf("failed to create virtualenv %s: %w: %s", e.Root, err, out)
	}
	return nil
}

func (e *Env) bootstrap(ctx context.Context, r remote.Runner) error {
	script := path.Join("/tmp", path.Base(e.BootstrapScript))
	f, err := readLocal(e.BootstrapScript)
	if err != nil {
		return err
	}
	if err := r.Put(ctx, f, script, 0644); err != nil {
		return fmt.Errorf("failed to upload virtualenv script: %w", err)
	}

	if out, err := r.Run(ctx, e.Interpreter, script, e.Root); err != nil {
		return fmt.Errorf("failed to bootstrap virtualenv %s: %w: %s", e.Root, err, out)
	}
	_, err = r.Run(ctx, "rm", "-f", script)
	return err
}

// Remove deletes the virtualenv if present
func (e *Env) Remove(ctx context.Context, r remote.Runner) error {
	exists, err := r.Exists(ctx, e.Python())
	if err != nil {
		return fmt.Errorf("failed to check virtualenv %s: %w", e.Root, err)
	}
	if !exists {
		return nil
	}

	if _, err := r.Run(ctx, "rm", "-rf", e.Root); err != nil {
		return fmt.Errorf("failed to remove virtualenv %s: %w", e.Root, err)
	}
	return nil
}

// Install uploads a local requirements file and pip-installs it
func (e *Env) Install(ctx context.Context, r remote.Runner, requirementsPath string) error {
	dest := path.Join(e.Root, "requirements.txt")
	f, err := readLocal(requirementsPath)
	if err != nil {
		return err
	}
	if err := r.Put(ctx, f, dest, 0644); err != nil {
		return fmt.Errorf("failed to upload requirements: %w", err)
	}

	if out, err := r.Run(ctx, e.Pip(), "install", "-r", dest); err != nil {
		return fmt.Errorf("failed to install requirements: %w: %s", err, out)
	}
	return nil
}

// InstallPackages pip-installs the named packages into the env
func (e *Env) InstallPackages(ctx context.Context, r remote.Runner, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"install"}, packages...)
	if out, err := r.Run(ctx, e.Pip(), args...); err != nil {
		return fmt.Errorf("failed to install packages: %w: %s", err, out)
	}
	return nil
}

// Freeze returns the env's installed packages, pip freeze format
func (e *Env) Freeze(ctx context.Context, r remote.Runner) (string, error) {
	frozen := path.Join(e.Root, "frozen.txt")
	if out, err := r.Run(ctx, "sh", "-c", e.Pip()+" freeze > "+frozen); err != nil {
		return "", fmt.Errorf("failed to freeze virtualenv: %w: %s", err, out)
	}

	var buf bytes.Buffer
	if err := r.Get(ctx, frozen, &buf); err != nil {
		return "", fmt.Errorf("failed to fetch frozen requirements: %w", err)
	}
	return buf.String(), nil
}
