package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsfab/opsfab/remote"
)

func TestFixShebang(t *testing.T) {
	tests := []struct {
		name     string
		shebang  string
		contents string
		want     string
	}{
		{
			name:     "replaces existing shebang",
			shebang:  "/srv/app/venv/bin/python",
			contents: "#!/usr/bin/python\nprint('hi')\n",
			want:     "#!/srv/app/venv/bin/python\nprint('hi')\n",
		},
		{
			name:     "prepends when missing",
			shebang:  "#!/usr/bin/env python3",
			contents: "print('hi')\n",
			want:     "#!/usr/bin/env python3\nprint('hi')\n",
		},
		{
			name:     "shebang-only file",
			shebang:  "/bin/sh",
			contents: "#!/bin/bash",
			want:     "#!/bin/sh\n",
		},
		{
			name:     "empty contents",
			shebang:  "/bin/sh",
			contents: "",
			want:     "#!/bin/sh\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FixShebang(tt.shebang, []byte(tt.contents))
			if string(got) != tt.want {
				t.Errorf("FixShebang() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUploadBytes(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	err := UploadBytes(ctx, r, []byte("content"), "/srv/app/conf/app.conf", UploadOptions{Mode: 0640})
	if err != nil {
		t.Fatalf("UploadBytes() error = %v", err)
	}

	if r.Uploads["/srv/app/conf/app.conf"] != "content" {
		t.Errorf("uploaded content = %q", r.Uploads["/srv/app/conf/app.conf"])
	}
	if r.Modes["/srv/app/conf/app.conf"] != 0640 {
		t.Errorf("mode = %v, want 0640", r.Modes["/srv/app/conf/app.conf"])
	}
}

func TestUploadBytes_Sudo(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	err := UploadBytes(ctx, r, []byte("server {}"), "/etc/nginx/conf.d/app.conf", UploadOptions{Sudo: true, Mode: 0644})
	if err != nil {
		t.Fatalf("UploadBytes() error = %v", err)
	}

	var staged string
	for dest := range r.Uploads {
		staged = dest
	}
	if !strings.HasPrefix(staged, "/tmp/opsfab-") || !strings.HasSuffix(staged, "app.conf") {
		t.Errorf("staging path = %q", staged)
	}

	wantPrefixes := []string{
		"sudo cp " + staged + " /etc/nginx/conf.d/app.conf",
		"rm -f " + staged,
		"sudo chmod 0644 /etc/nginx/conf.d/app.conf",
	}
	if len(r.Commands) != len(wantPrefixes) {
		t.Fatalf("Commands = %v", r.Commands)
	}
	for i, want := range wantPrefixes {
		if r.Commands[i] != want {
			t.Errorf("Commands[%d] = %q, want %q", i, r.Commands[i], want)
		}
	}
}

func TestUploadBytes_Backup(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Files["/srv/app/conf/app.conf"] = "old"

	err := UploadBytes(ctx, r, []byte("new"), "/srv/app/conf/app.conf", UploadOptions{Backup: true})
	if err != nil {
		t.Fatalf("UploadBytes() error = %v", err)
	}

	if len(r.Commands) != 1 || r.Commands[0] != "cp /srv/app/conf/app.conf /srv/app/conf/app.conf.bak" {
		t.Errorf("Commands = %v", r.Commands)
	}
	if r.Uploads["/srv/app/conf/app.conf"] != "new" {
		t.Errorf("uploaded content = %q", r.Uploads["/srv/app/conf/app.conf"])
	}
}

func TestBackup_MissingFile(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	if err := Backup(ctx, r, "/srv/app/conf/app.conf", false); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if len(r.Commands) != 0 {
		t.Errorf("Backup of missing file ran commands: %v", r.Commands)
	}
}

func TestNormalizeDest(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Errs = map[string]error{"test -d /srv/app/conf/app.conf": errors.New("not a directory")}

	if got := NormalizeDest(ctx, r, "/local/app.conf", "/srv/app/conf"); got != "/srv/app/conf/app.conf" {
		t.Errorf("NormalizeDest(dir) = %q", got)
	}
	if got := NormalizeDest(ctx, r, "/local/app.conf", "/srv/app/conf/app.conf"); got != "/srv/app/conf/app.conf" {
		t.Errorf("NormalizeDest(file) = %q", got)
	}
}

func TestUpload_MirrorMode(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Errs = map[string]error{"test -d /srv/app/bin/run.sh": errors.New("not a directory")}

	src := filepath.Join(t.TempDir(), "run.sh")
	if err := os.WriteFile(src, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	err := Upload(ctx, r, src, "/srv/app/bin/run.sh", UploadOptions{MirrorMode: true})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if r.Modes["/srv/app/bin/run.sh"] != 0755 {
		t.Errorf("mode = %v, want 0755", r.Modes["/srv/app/bin/run.sh"])
	}
}

func TestUploadTemplate(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()
	r.Errs = map[string]error{"test -d /srv/app/conf/app.conf": errors.New("not a directory")}

	src := filepath.Join(t.TempDir(), "app.conf")
	if err := os.WriteFile(src, []byte("server_name {{.Domain}};\n"), 0644); err != nil {
		t.Fatal(err)
	}

	data := map[string]string{"Domain": "app.example.com"}
	err := UploadTemplate(ctx, r, src, "/srv/app/conf/app.conf", data, UploadOptions{})
	if err != nil {
		t.Fatalf("UploadTemplate() error = %v", err)
	}
	if got := r.Uploads["/srv/app/conf/app.conf"]; got != "server_name app.example.com;\n" {
		t.Errorf("rendered = %q", got)
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.tmpl")
	dest := filepath.Join(dir, "app.conf")
	if err := os.WriteFile(src, []byte("port={{.Port}}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Render(src, dest, map[string]int{"Port": 8080}, true); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "port=8080" {
		t.Errorf("rendered = %q", got)
	}

	bak, err := os.ReadFile(dest + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "old" {
		t.Errorf("backup = %q", bak)
	}
}

func TestMkdirAll(t *testing.T) {
	ctx := context.Background()
	r := remote.NewRecorder()

	if err := MkdirAll(ctx, r, true, "/srv/app/bin", "/srv/app/log"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if len(r.Commands) != 1 || r.Commands[0] != "sudo mkdir -p /srv/app/bin /srv/app/log" {
		t.Errorf("Commands = %v", r.Commands)
	}
}
