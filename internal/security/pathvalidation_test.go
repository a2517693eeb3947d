package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "reports")
	unsafeDir := filepath.Join(tmpDir, "etc")
	if err := os.MkdirAll(safeDir, 0755); err != nil {
		t.Fatalf("Failed to create safe directory: %v", err)
	}
	if err := os.MkdirAll(unsafeDir, 0755); err != nil {
		t.Fatalf("Failed to create unsafe directory: %v", err)
	}
	symlinkPath := filepath.Join(safeDir, "evil-symlink")
	if err := os.Symlink(unsafeDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "timeline.png"), safeDir, false},
		{"new nested path", filepath.Join(safeDir, "runs", "v.html"), safeDir, false},
		{"dot-dot escape", filepath.Join(safeDir, "..", "timeline.png"), safeDir, true},
		{"relative escape", "../../../etc/passwd", safeDir, true},
		{"absolute outside", "/etc/passwd", safeDir, true},
		{"through symlinked parent", filepath.Join(symlinkPath, "new.png"), safeDir, true},
		{"symlink itself", symlinkPath, safeDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrPathEscape) {
				t.Errorf("error %v does not wrap ErrPathEscape", err)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	if err := ValidatePathWithinAllowedDirs(filepath.Join(dir2, "a.db"), []string{dir1, dir2}); err != nil {
		t.Errorf("second dir rejected: %v", err)
	}
	if err := ValidatePathWithinAllowedDirs("/etc/passwd", []string{dir1, dir2}); !errors.Is(err, ErrPathEscape) {
		t.Errorf("outside path error = %v", err)
	}
	if err := ValidatePathWithinAllowedDirs(filepath.Join(dir1, "a.db"), nil); err == nil {
		t.Error("expected error with no allowed directories")
	}
}

func TestValidateOutputPath(t *testing.T) {
	extra := t.TempDir()

	if err := ValidateOutputPath(filepath.Join(os.TempDir(), "validation.html")); err != nil {
		t.Errorf("temp dir rejected: %v", err)
	}
	if err := ValidateOutputPath("timeline.png"); err != nil {
		t.Errorf("working dir rejected: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(extra, "x.png"), extra); err != nil {
		t.Errorf("extra dir rejected: %v", err)
	}
	if err := ValidateOutputPath("/etc/aeb.png"); err == nil {
		t.Error("expected /etc to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"pedestrian_crossing":     "pedestrian_crossing",
		"../../etc/passwd":        "etc_passwd",
		"scene one / two":         "scene_one_two",
		"":                        "unknown",
		"...":                     "unknown",
		"4f1c-9e2a.run":           "4f1c-9e2a.run",
		"weather_reliability/fog": "weather_reliability_fog",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}

func TestReportFilename(t *testing.T) {
	if got := ReportFilename("timeline", "cyclist ahead", "png"); got != "timeline-cyclist_ahead.png" {
		t.Errorf("ReportFilename() = %q", got)
	}
}
