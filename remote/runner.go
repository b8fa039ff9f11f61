// Package remote runs commands and moves files on deployment targets.
// A Runner abstracts over local execution and SSH so higher-level
// helpers (files, venv, services) work against either.
package remote

import (
	"context"
	"io"
	"os"
	"strings"
)

// Runner executes commands on a deployment target
type Runner interface {
	// Run executes cmd with args and returns combined output.
	Run(ctx context.Context, cmd string, args ...string) (string, error)
	// Sudo executes cmd with args under sudo.
	Sudo(ctx context.Context, cmd string, args ...string) (string, error)
	// RunStreaming executes cmd, streaming output to the given writers.
	RunStreaming(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error
	// Put writes src to the remote path dest with the given mode.
	Put(ctx context.Context, src io.Reader, dest string, mode os.FileMode) error
	// Get copies the remote path src into dst.
	Get(ctx context.Context, src string, dst io.Writer) error
	// Exists reports whether path exists on the target.
	Exists(ctx context.Context, path string) (bool, error)
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
