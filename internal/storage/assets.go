package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AssetKey builds the blob key for a generated asset of a job, e.g.
// "storyboards/{jobID}/scene-01.png". index < 0 omits the counter.
func AssetKey(category, jobID, name string, index int, mime string) string {
	ext := ExtensionForMIME(mime)
	if ext == "" {
		ext = ".bin"
	}
	if index < 0 {
		return fmt.Sprintf("%s/%s/%s%s", category, jobID, name, ext)
	}
	return fmt.Sprintf("%s/%s/%s-%02d%s", category, jobID, name, index+1, ext)
}

// EnsureExtension appends the extension matching mime when key has none.
func EnsureExtension(key, mime string) string {
	if key == "" {
		return key
	}
	expected := ExtensionForMIME(mime)
	if expected == "" || filepath.Ext(key) != "" {
		return key
	}
	return key + expected
}

// ExtensionForMIME maps the media types adapters produce to file extensions.
func ExtensionForMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "video/mp4":
		return ".mp4"
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	default:
		return ""
	}
}
