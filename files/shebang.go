package files

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/opsfab/opsfab/remote"
)

// FixShebang replaces or inserts the interpreter line of a script.
// Shebang may be given with or without the "#!" prefix. An existing
// shebang line is replaced, anything else gets the line prepended.
func FixShebang(shebang string, contents []byte) []byte {
	shebang = strings.TrimSpace(shebang)
	if !strings.HasPrefix(shebang, "#!") {
		shebang = "#!" + shebang
	}

	line := []byte(shebang + "\n")
	if bytes.HasPrefix(contents, []byte("#!")) {
		if idx := bytes.IndexByte(contents, '\n'); idx >= 0 {
			return append(line, contents[idx+1:]...)
		}
		return line
	}
	return append(line, contents...)
}

// UploadShebang uploads a local script with its interpreter line
// rewritten, typically to point at a virtualenv's python
func UploadShebang(ctx context.Context, r remote.Runner, localPath, dest, shebang string, opts UploadOptions) error {
	content, err := os.ReadFile(localPath) // #nosec G304 -- caller chooses the source
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	dest = NormalizeDest(ctx, r, localPath, dest)
	return UploadBytes(ctx, r, FixShebang(shebang, content), dest, opts)
}
