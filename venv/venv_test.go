package venv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsfab/opsfab/remote"
)

func TestEnv_Paths(t *testing.T) {
	e := New("/srv/app/venv", "")

	if e.Interpreter != "python3" {
		t.Errorf("default interpreter = %q", e.Interpreter)
	}
	if got := e.Bin(); got != "/srv/app/venv/bin" {
		t.Errorf("Bin() = %q", got)
	}
	if got := e.Python(); got != "/srv/app/venv/bin/python" {
		t.Errorf("Python() = %q", got)
	}
	if got := e.Pip(); got != "/srv/app/venv/bin/pip" {
		t.Errorf("Pip() = %q", got)
	}
}

func TestEnv_Create(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	e := New("/srv/app/venv", "python3.11")

	if err := e.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := []string{
		"mkdir -p /srv/app",
		"python3.11 -m venv /srv/app/venv",
	}
	if len(r.Commands) != len(want) {
		t.Fatalf("Commands = %v", r.Commands)
	}
	for i := range want {
		if r.Commands[i] != want[i] {
			t.Errorf("Commands[%d] = %q, want %q", i, r.Commands[i], want[i])
		}
	}
}

func TestEnv_Create_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Files["/srv/app/venv/bin/python"] = ""
	e := New("/srv/app/venv", "")

	if err := e.Create(ctx, r); err == nil {
		t.Error("Create() should fail when env exists")
	}
}

func TestEnv_Create_Bootstrap(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	script := filepath.Join(t.TempDir(), "virtualenv.py")
	if err := os.WriteFile(script, []byte("# bootstrap"), 0644); err != nil {
		t.Fatal(err)
	}

	e := New("/srv/app/venv", "python2.6")
	e.BootstrapScript = script

	if err := e.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if r.Uploads["/tmp/virtualenv.py"] != "# bootstrap" {
		t.Errorf("script upload = %q", r.Uploads["/tmp/virtualenv.py"])
	}
	want := []string{
		"mkdir -p /srv/app",
		"python2.6 /tmp/virtualenv.py /srv/app/venv",
		"rm -f /tmp/virtualenv.py",
	}
	if len(r.Commands) != len(want) {
		t.Fatalf("Commands = %v", r.Commands)
	}
	for i := range want {
		if r.Commands[i] != want[i] {
			t.Errorf("Commands[%d] = %q, want %q", i, r.Commands[i], want[i])
		}
	}
}

func TestEnv_Remove(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Files["/srv/app/venv/bin/python"] = ""
	e := New("/srv/app/venv", "")

	if err := e.Remove(ctx, r); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(r.Commands) != 1 || r.Commands[0] != "rm -rf /srv/app/venv" {
		t.Errorf("Commands = %v", r.Commands)
	}
}

func TestEnv_Remove_Missing(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	e := New("/srv/app/venv", "")

	if err := e.Remove(ctx, r); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(r.Commands) != 0 {
		t.Errorf("Remove of missing env ran commands: %v", r.Commands)
	}
}

func TestEnv_Install(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	e := New("/srv/app/venv", "")

	reqs := filepath.Join(t.TempDir(), "requirements.txt")
	if err := os.WriteFile(reqs, []byte("flask==2.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := e.Install(ctx, r, reqs); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if r.Uploads["/srv/app/venv/requirements.txt"] != "flask==2.0\n" {
		t.Errorf("requirements upload = %q", r.Uploads["/srv/app/venv/requirements.txt"])
	}
	if len(r.Commands) != 1 || r.Commands[0] != "/srv/app/venv/bin/pip install -r /srv/app/venv/requirements.txt" {
		t.Errorf("Commands = %v", r.Commands)
	}
}

func TestEnv_Freeze(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Files["/srv/app/venv/frozen.txt"] = "flask==2.0\n"
	e := New("/srv/app/venv", "")

	got, err := e.Freeze(ctx, r)
	if err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}
	if got != "flask==2.0\n" {
		t.Errorf("Freeze() = %q", got)
	}
	if len(r.Commands) != 1 || r.Commands[0] != "sh -c /srv/app/venv/bin/pip freeze > /srv/app/venv/frozen.txt" {
		t.Errorf("Commands = %v", r.Commands)
	}
}
