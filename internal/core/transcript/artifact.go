package transcript

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/model"
)

var mimeTypes = map[string]string{
	FormatSRT:  "application/x-subrip",
	FormatVTT:  "text/vtt",
	FormatHTML: "text/html",
	FormatTXT:  "text/plain",
	FormatJSON: "application/json",
	FormatZip:  "application/zip",
}

// MimeType returns the MIME type recorded on artifacts of the given format.
func MimeType(format string) string {
	if mt, ok := mimeTypes[format]; ok {
		return mt
	}
	return "application/octet-stream"
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)
var underscoreRuns = regexp.MustCompile(`_+`)

// SanitizePrefix derives the artifact name prefix from an input filename:
// extension stripped, lowercased, characters outside [a-z0-9._-] collapsed
// to single underscores, leading/trailing underscores trimmed. Falls back to
// "file" when nothing survives.
func SanitizePrefix(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.ToLower(strings.TrimSpace(stem))
	stem = unsafeChars.ReplaceAllString(stem, "_")
	stem = underscoreRuns.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "_")
	if stem == "" {
		return "file"
	}
	return stem
}

// ArtifactName builds the canonical artifact file name for one rendered
// output. json and html have fixed suffixes regardless of variant; the
// subtitle and text formats carry the variant in the name.
func ArtifactName(prefix string, variant model.Variant, format string) string {
	switch format {
	case FormatJSON:
		return prefix + "__transcript.json"
	case FormatHTML:
		return prefix + "__combined.html"
	default:
		return prefix + "__" + string(variant) + "." + format
	}
}
