package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Recorder is a Runner for tests: it records every command and upload
// and serves canned responses keyed by command line.
type Recorder struct {
	mu sync.Mutex

	// Commands holds each executed command line, sudo ones prefixed "sudo ".
	Commands []string
	// Uploads maps destination path to uploaded content.
	Uploads map[string]string
	// Modes maps destination path to the mode it was uploaded with.
	Modes map[string]os.FileMode
	// Files maps remote path to content served by Get and seen by Exists.
	Files map[string]string
	// Responses maps a command line to its canned output.
	Responses map[string]string
	// Errs maps a command line to a forced error.
	Errs map[string]error
}

// NewRecorder returns an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		Uploads: make(map[string]string),
		Modes:   make(map[string]os.FileMode),
		Files:   make(map[string]string),
	}
}

func (r *Recorder) record(line string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, line)
	if err, ok := r.Errs[line]; ok {
		return "", err
	}
	return r.Responses[line], nil
}

func (r *Recorder) Run(ctx context.Context, cmd string, args ...string) (string, error) {
	return r.record(joinPlain(cmd, args))
}

func (r *Recorder) Sudo(ctx context.Context, cmd string, args ...string) (string, error) {
	return r.record("sudo " + joinPlain(cmd, args))
}

func (r *Recorder) RunStreaming(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	out, err := r.record(joinPlain(cmd, args))
	if stdout != nil && out != "" {
		fmt.Fprint(stdout, out)
	}
	return err
}

func (r *Recorder) Put(ctx context.Context, src io.Reader, dest string, mode os.FileMode) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Uploads[dest] = buf.String()
	r.Modes[dest] = mode
	r.Files[dest] = buf.String()
	return nil
}

func (r *Recorder) Get(ctx context.Context, src string, dst io.Writer) error {
	r.mu.Lock()
	content, ok := r.Files[src]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such file: %s", src)
	}
	_, err := io.WriteString(dst, content)
	return err
}

func (r *Recorder) Exists(ctx context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Files[path]
	return ok, nil
}

// joinPlain joins without shell quoting so tests can match on readable
// command lines.
func joinPlain(cmd string, args []string) string {
	line := cmd
	for _, arg := range args {
		line += " " + arg
	}
	return line
}
