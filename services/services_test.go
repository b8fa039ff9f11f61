package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsfab/opsfab/remote"
	"github.com/opsfab/opsfab/venv"
)

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func assertCommands(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("commands[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInstallPackages(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	if err := InstallPackages(ctx, r, "nginx", "git"); err != nil {
		t.Fatalf("InstallPackages() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{"sudo yum -y install nginx git"})

	if err := InstallPackages(ctx, r); err != nil {
		t.Fatalf("InstallPackages() with no packages error = %v", err)
	}
	if len(r.Commands) != 1 {
		t.Errorf("empty install ran commands: %v", r.Commands)
	}
}

func TestSupervisord_Install(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	s := NewSupervisord()
	env := venv.New("/srv/app/venv", "")

	if err := s.Install(ctx, r, env); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{
		"/srv/app/venv/bin/pip install supervisor",
		"sudo mkdir -p /etc/supervisor.d",
	})
}

func TestSupervisord_ConfInclude(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	s := NewSupervisord()

	tmpl := writeTemplate(t, "app.ini", "[program:{{.Program}}]\ncommand={{.Command}}\n")
	data := map[string]string{"Program": "app", "Command": "/srv/app/venv/bin/gunicorn app:app"}

	if err := s.ConfInclude(ctx, r, tmpl, data); err != nil {
		t.Fatalf("ConfInclude() error = %v", err)
	}

	var staged string
	for dest, content := range r.Uploads {
		staged = dest
		if content != "[program:app]\ncommand=/srv/app/venv/bin/gunicorn app:app\n" {
			t.Errorf("rendered = %q", content)
		}
	}

	// the recorder answers the test -d probe without error, so the
	// include path counts as a directory and the rendered file lands
	// under it with the template's basename
	want := []string{
		"test -d /etc/supervisor.d",
		"sudo cp " + staged + " /etc/supervisor.d/app.ini",
		"rm -f " + staged,
		"sudo chmod 0644 /etc/supervisor.d/app.ini",
	}
	assertCommands(t, r.Commands, want)
}

func TestSupervisord_ReloadProgram(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	s := NewSupervisord()

	if err := s.ReloadProgram(ctx, r, "app"); err != nil {
		t.Fatalf("ReloadProgram() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{
		"sudo supervisorctl -c /etc/supervisord.conf reread",
		"sudo supervisorctl -c /etc/supervisord.conf stop app",
		"sudo supervisorctl -c /etc/supervisord.conf remove app",
		"sudo supervisorctl -c /etc/supervisord.conf add app",
		"sudo supervisorctl -c /etc/supervisord.conf start app",
	})
}

func TestNginx_Reload(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	n := NewNginx()

	if err := n.Reload(ctx, r); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{"sudo service nginx reload"})
}

func TestUpstart_ReloadProgram(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Errs = map[string]error{"sudo initctl stop supervisord": errors.New("unknown instance")}
	u := NewUpstart()

	if err := u.ReloadProgram(ctx, r, "supervisord"); err != nil {
		t.Fatalf("ReloadProgram() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{
		"sudo initctl reload-configuration",
		"sudo initctl stop supervisord",
		"sudo initctl start supervisord",
	})
}

func TestSystemd_Restart(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	s := NewSystemd()

	if err := s.Restart(ctx, r, "supervisord"); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{"sudo systemctl restart supervisord"})
}

func TestSystemd_Enable(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	s := NewSystemd()

	if err := s.Enable(ctx, r, "supervisord"); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	assertCommands(t, r.Commands, []string{"sudo systemctl enable --now supervisord"})
}
