package guards

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// TestDomainPackagesDoNotImportAPI enforces the layering invariant that
// domain packages must not import the api package. The dependency direction
// must be server -> api -> domain, never domain -> api.
//
// Handlers adapt services to HTTP; services must stay ignorant of response
// envelopes, reason codes, and status mapping.
func TestDomainPackagesDoNotImportAPI(t *testing.T) {
	repoRoot := findRepoRoot(t)

	forbiddenImport := `"github.com/vitolahq/vitola/internal/api"`

	// The server package registers handlers and writes envelopes from
	// middleware, so it is the one legitimate importer.
	allowedSubstrings := []string{
		"/internal/server/",
	}

	var violations []string

	err := filepath.WalkDir(repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if isIgnoredDir(d) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		p := filepath.ToSlash(path)
		for _, allow := range allowedSubstrings {
			if strings.Contains(p, allow) {
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fileRel, _ := filepath.Rel(repoRoot, path)

		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, forbiddenImport) {
				violations = append(violations,
					fileRel+":"+strconv.Itoa(i+1)+": domain package imports api package: "+strings.TrimSpace(line))
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(violations) > 0 {
		t.Fatalf("domain packages must not import the api package (dependency flows server -> api -> domain, not reverse):\n%s",
			strings.Join(violations, "\n"))
	}
}

// findRepoRoot walks upward from the working directory until it finds go.mod.
func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// isIgnoredDir reports directories the go tool does not build: names starting
// with "." or "_", testdata, and vendor.
func isIgnoredDir(d fs.DirEntry) bool {
	name := d.Name()
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "_") ||
		name == "testdata" ||
		name == "vendor"
}
