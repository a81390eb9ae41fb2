package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"photo.JPEG", true},
		{"photo.png", true},
		{"photo.PNG", true},
		{"photo.gif", false},
		{"photo.webp", false},
		{"photo", false},
		{"jpg", false},
		{"/some/dir/photo.Jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsImageFile(tt.path); got != tt.expected {
				t.Errorf("IsImageFile(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "c.txt", "d.JPEG"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	paths, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "d.JPEG"),
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d images, got %d: %v", len(want), len(paths), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestListImages_MissingDir(t *testing.T) {
	if _, err := ListImages(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestCopyFileTo(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "photo.jpg")
	if err := os.WriteFile(src, []byte("image-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	if err := CopyFileTo(src, dstDir); err != nil {
		t.Fatalf("CopyFileTo failed: %v", err)
	}

	// Source must be preserved.
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source file should still exist: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dstDir, "photo.jpg"))
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("copied content mismatch: %q", data)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	if err := CopyFile(filepath.Join(t.TempDir(), "nope.jpg"), filepath.Join(t.TempDir(), "out.jpg")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
