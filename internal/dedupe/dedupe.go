// Package dedupe decides whether a source attachment already exists on the
// target and whether it is eligible for transfer at all.
package dedupe

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
)

// DefaultMaxFileSize caps transfers at 500 MB, the target's upload limit.
const DefaultMaxFileSize = 500 * 1024 * 1024

// Limits constrains which files are eligible for transfer.
type Limits struct {
	// MaxSize is the largest transferable file in bytes (default 500 MB).
	MaxSize int64
	// AllowedExts, when non-empty, restricts transfers to these extensions
	// (lowercase, with leading dot, e.g. ".pdf").
	AllowedExts []string
}

// MatchByNameAndSize finds the target asset an attachment duplicates. A match
// requires a case-insensitive file name match and byte-identical sizes;
// differing sizes mean a different file, even under the same name. Returns
// the matched asset, or false when nothing matches.
func MatchByNameAndSize(att services.Attachment, assets []services.Asset) (*services.Asset, bool) {
	for i := range assets {
		if !strings.EqualFold(att.Name, assets[i].Name) {
			continue
		}
		if att.Size == assets[i].Size {
			return &assets[i], true
		}
	}
	return nil, false
}

// MatchByContentHash finds the target asset whose content hash matches the
// attachment. Neither platform exposes content hashes over its API today, so
// this never matches; callers fall back to name and size.
func MatchByContentHash(att services.Attachment, assets []services.Asset) (*services.Asset, bool) {
	return nil, false
}

// ValidateFile checks an attachment against the limits. A non-empty reason
// means the file must be skipped, not failed.
func ValidateFile(att services.Attachment, limits Limits) (bool, string) {
	maxSize := limits.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	if att.Name == "" {
		return false, "attachment has no file name"
	}
	if att.URL == "" {
		return false, "attachment has no download url"
	}
	if att.Size > maxSize {
		return false, fmt.Sprintf("file size %d exceeds limit %d", att.Size, maxSize)
	}

	if len(limits.AllowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(att.Name))
		allowed := false
		for _, e := range limits.AllowedExts {
			if ext == e {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, fmt.Sprintf("extension %q is not allowed", ext)
		}
	}

	return true, ""
}
