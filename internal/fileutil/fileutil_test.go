package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "captions.json")
	dst := filepath.Join(dir, "copy.json")
	content := []byte(`{"version":1,"captions":[]}`)
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyVerified(src, dst); err != nil {
		t.Fatalf("CopyVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestCopyVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.captions.json")

	got, err := Backup(path)
	if err != nil || got != "" {
		t.Fatalf("Backup of missing file = %q, %v", got, err)
	}

	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Backup(path)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if got != path+BackupSuffix {
		t.Fatalf("unexpected backup path %q", got)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Backup(path); err != nil {
		t.Fatalf("second Backup: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected backup to be replaced, got %q", data)
	}
}
