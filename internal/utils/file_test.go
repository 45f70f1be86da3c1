package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPhotoFile(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":     true,
		"b.JPEG":    true,
		"c.webp":    true,
		"d.tif":     true,
		"e.txt":     false,
		"noext":     false,
		"dir/f.png": true,
	}
	for name, want := range tests {
		if got := IsPhotoFile(name); got != want {
			t.Errorf("IsPhotoFile(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestListPhotos(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	for _, name := range []string{"b.jpg", "a.png", "notes.txt", filepath.Join("sub", "c.webp")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListPhotos(dir)
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "sub", "c.webp"),
	}
	if len(files) != len(want) {
		t.Fatalf("Expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, expected %q", i, files[i], want[i])
		}
	}
}

func TestPayloadFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"/photos/lunch.png", filepath.Join("out", "lunch_payload.jpg")},
		{"https://example.com/img/stew.jpg?size=large", filepath.Join("out", "stew_payload.jpg")},
		{"..jpg", filepath.Join("out", "photo_payload.jpg")},
	}
	for _, tt := range tests {
		if got := PayloadFilename(tt.input, "out"); got != tt.want {
			t.Errorf("PayloadFilename(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(` a:b*c? `); got != "a_b_c_" {
		t.Errorf("Unexpected %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:         "512 B",
		2048:        "2.0 KB",
		5 << 20:     "5.0 MB",
		3 << 30 / 2: "1.5 GB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, expected %q", size, got, want)
		}
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)

	if !FileExists(file) || FileExists(dir) || FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists mismatch")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists mismatch")
	}

	nested := filepath.Join(dir, "a", "b")
	if err := EnsureDir(nested); err != nil || !DirExists(nested) {
		t.Errorf("EnsureDir failed: %v", err)
	}
}
