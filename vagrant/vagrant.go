// Package vagrant drives a local Vagrant box, the usual stand-in target
// for deployment runs before real instances are involved.
package vagrant

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/opsfab/opsfab/types"
)

// Box states as reported by vagrant status
const (
	StatusRunning    = "running"
	StatusPoweroff   = "poweroff"
	StatusNotCreated = "not created"
)

// Vagrant controls the box defined in Root's Vagrantfile
type Vagrant struct {
	// Root is the directory holding the Vagrantfile.
	Root string
}

// New returns a Vagrant rooted at dir
func New(dir string) *Vagrant {
	return &Vagrant{Root: dir}
}

// Up boots the box
func (v *Vagrant) Up(ctx context.Context) error {
	return v.run(ctx, "up")
}

// Halt shuts the box down
func (v *Vagrant) Halt(ctx context.Context) error {
	return v.run(ctx, "halt")
}

// Destroy removes the box without asking
func (v *Vagrant) Destroy(ctx context.Context) error {
	return v.run(ctx, "destroy", "-f")
}

// Status returns the state of the default box
func (v *Vagrant) Status(ctx context.Context) (string, error) {
	out, err := v.output(ctx, "status")
	if err != nil {
		return "", err
	}
	return parseStatus(out)
}

// SSHConfig returns the box's ssh settings as key/value pairs. Keys are
// as vagrant prints them (HostName, User, Port, IdentityFile), with
// Keyfile aliased to IdentityFile.
func (v *Vagrant) SSHConfig(ctx context.Context) (map[string]string, error) {
	out, err := v.output(ctx, "ssh-config")
	if err != nil {
		return nil, err
	}
	return parseSSHConfig(out), nil
}

// Host returns the box as a connectable host
func (v *Vagrant) Host(ctx context.Context) (types.Host, string, error) {
	conf, err := v.SSHConfig(ctx)
	if err != nil {
		return types.Host{}, "", err
	}

	host := types.Host{
		User: conf["User"],
		Addr: conf["HostName"],
		Port: conf["Port"],
	}
	if host.Addr == "" {
		return types.Host{}, "", fmt.Errorf("vagrant ssh-config has no HostName")
	}
	return host, conf["Keyfile"], nil
}

func (v *Vagrant) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "vagrant", args...)
	cmd.Dir = v.Root
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("vagrant %s failed: %w: %s", args[0], err, out)
	}
	return nil
}

func (v *Vagrant) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "vagrant", args...)
	cmd.Dir = v.Root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("vagrant %s failed: %w", args[0], err)
	}
	return string(out), nil
}

// parseStatus pulls the default box's state out of vagrant status output
func parseStatus(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "default" {
			continue
		}

		// state may be multiple words ("not created"), provider comes
		// last in parens
		state := fields[1:]
		if strings.HasPrefix(state[len(state)-1], "(") {
			state = state[:len(state)-1]
		}
		return strings.Join(state, " "), nil
	}
	return "", fmt.Errorf("no default box in vagrant status output")
}

// parseSSHConfig parses vagrant ssh-config output into key/value pairs
func parseSSHConfig(out string) map[string]string {
	conf := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "Host ") {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}

		key := strings.TrimSpace(fields[0])
		value := strings.Trim(strings.TrimSpace(fields[1]), `"`)
		conf[key] = value
		if key == "IdentityFile" {
			conf["Keyfile"] = value
		}
	}
	return conf
}
