package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// photoExts are the formats the normalizer can decode
var photoExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tif": true, "tiff": true, "webp": true,
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// IsPhotoFile checks if a file has a decodable photo extension
func IsPhotoFile(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return photoExts[strings.ToLower(ext)]
}

// ListPhotos recursively lists photo files under dir in lexical order
func ListPhotos(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsPhotoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)

	return files, err
}

// PayloadFilename names the saved payload of an input photo or URL:
// <dir>/<name>_payload.jpg
func PayloadFilename(input, dir string) string {
	base := input
	if i := strings.IndexAny(base, "?#"); i >= 0 && strings.Contains(input, "://") {
		base = base[:i]
	}
	base = filepath.Base(base)
	name := SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "photo"
	}
	return filepath.Join(dir, name+"_payload.jpg")
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in filenames
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, filename)

	// Remove leading/trailing spaces and dots
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
