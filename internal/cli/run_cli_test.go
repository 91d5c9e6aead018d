package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func buildSidasBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the sidas binary")
	}

	outPath := filepath.Join(t.TempDir(), "sidas-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", outPath, "./cmd/sidas")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build sidas binary: %v; output=%s", err, string(out))
	}
	return outPath
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %T: %v", err, err)
	}
	return exitErr.ExitCode()
}

func TestRun_ExitCodes(t *testing.T) {
	bin := buildSidasBinary(t)

	failing := `
assets:
  - name: rates
    kind: file
    params: {path: missing.json}
`
	tests := []struct {
		name    string
		project string
		args    []string
		want    int
		stderr  string
	}{
		{name: "clean", project: shopProject, want: 0},
		{name: "failed asset", project: failing, want: 1},
		{name: "invalid flag value", project: shopProject, args: []string{"--concurrency", "0"}, want: 3, stderr: "--concurrency"},
		{name: "unknown target", project: shopProject, args: []string{"ghost"}, want: 3, stderr: "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--project", writeProject(t, tt.project), "--no-console"}, tt.args...)
			cmd := exec.Command(bin, args...)
			cmd.Env = append(os.Environ(), "NO_COLOR=1")
			var stderr strings.Builder
			cmd.Stderr = &stderr
			got := exitCode(t, cmd.Run())
			if got != tt.want {
				t.Fatalf("exit code = %d, want %d; stderr=%s", got, tt.want, stderr.String())
			}
			if tt.stderr != "" && !strings.Contains(stderr.String(), tt.stderr) {
				t.Fatalf("stderr %q does not mention %q", stderr.String(), tt.stderr)
			}
		})
	}
}
