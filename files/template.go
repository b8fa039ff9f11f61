package files

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/opsfab/opsfab/remote"
)

// RenderTemplate parses a local template file and executes it with data
func RenderTemplate(localPath string, data any) ([]byte, error) {
	tmpl, err := template.ParseFiles(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", localPath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", localPath, err)
	}
	return buf.Bytes(), nil
}

// UploadTemplate renders a local template and uploads the result to dest
// on the target
func UploadTemplate(ctx context.Context, r remote.Runner, localPath, dest string, data any, opts UploadOptions) error {
	content, err := RenderTemplate(localPath, data)
	if err != nil {
		return err
	}
	dest = NormalizeDest(ctx, r, localPath, dest)
	return UploadBytes(ctx, r, content, dest, opts)
}

// Render writes a rendered template to a local file, backing up an
// existing destination first when backup is set
func Render(localPath, dest string, data any, backup bool) error {
	content, err := RenderTemplate(localPath, data)
	if err != nil {
		return err
	}

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, filepath.Base(localPath))
	}

	if backup {
		if existing, err := os.ReadFile(dest); err == nil { // #nosec G304 -- caller chooses the destination
			if err := os.WriteFile(dest+".bak", existing, 0644); err != nil {
				return fmt.Errorf("failed to back up %s: %w", dest, err)
			}
		}
	}

	if err := os.WriteFile(dest, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
