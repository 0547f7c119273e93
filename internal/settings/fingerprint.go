package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Fingerprint derives the stable settings key for a folder. It is a pure
// function of the normalized path string: the same path always maps to the
// same record, and a renamed folder is a different folder.
func Fingerprint(folderPath string) string {
	normalized := NormalizeFolder(folderPath)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeFolder cleans a folder path into the canonical form fingerprints
// are computed over.
func NormalizeFolder(folderPath string) string {
	if abs, err := filepath.Abs(filepath.Clean(folderPath)); err == nil {
		return abs
	}
	return filepath.Clean(folderPath)
}

// FolderOf returns the normalized containing folder for a media file path.
func FolderOf(filePath string) string {
	return NormalizeFolder(filepath.Dir(filePath))
}
