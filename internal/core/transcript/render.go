package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/model"
)

// Output formats accepted at job submission and by Render.
const (
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatHTML = "html"
	FormatTXT  = "txt"
	FormatJSON = "json"
)

// FormatZip is the synthetic format recorded on bundle artifacts. It is not
// renderable and not accepted at submission.
const FormatZip = "zip"

var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists the renderable output formats in canonical order.
var Formats = []string{FormatSRT, FormatVTT, FormatHTML, FormatTXT, FormatJSON}

// ValidFormat reports whether f is one of the five renderable formats.
func ValidFormat(f string) bool {
	switch f {
	case FormatSRT, FormatVTT, FormatHTML, FormatTXT, FormatJSON:
		return true
	}
	return false
}

// Render produces the textual artifact for one (format, variant) pair.
// Pure and deterministic: identical input always yields byte-identical
// output. html and json ignore the variant and always render the combined
// view.
func Render(doc *Document, format string, variant model.Variant) (string, error) {
	switch format {
	case FormatSRT:
		return renderSubtitles(doc, variant, ",", false)
	case FormatVTT:
		return renderSubtitles(doc, variant, ".", true)
	case FormatTXT:
		return renderText(doc, variant)
	case FormatHTML:
		return renderHTML(doc), nil
	case FormatJSON:
		return renderJSON(doc)
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
}

// segmentText picks the variant's text, falling back to source text when a
// segment has no translation.
func segmentText(seg Segment, variant model.Variant) string {
	if variant == model.VariantTranslated && seg.TranslatedText != "" {
		return seg.TranslatedText
	}
	return seg.Text
}

// formatTimestamp renders seconds as HH:MM:SS<sep>mmm. Whole seconds are
// floored into H/M/S; the sub-second remainder becomes the millisecond field.
func formatTimestamp(seconds float64, sep string) string {
	whole := int(seconds)
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60
	millis := int((seconds - float64(whole)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}

func renderSubtitles(doc *Document, variant model.Variant, sep string, webvtt bool) (string, error) {
	if variant != model.VariantSource && variant != model.VariantTranslated {
		return "", fmt.Errorf("variant %q is not supported for subtitle formats", variant)
	}

	var b strings.Builder
	if webvtt {
		b.WriteString("WEBVTT\n\n")
		for _, seg := range doc.Segments {
			b.WriteString(formatTimestamp(seg.Start, sep))
			b.WriteString(" --> ")
			b.WriteString(formatTimestamp(seg.End, sep))
			b.WriteByte('\n')
			b.WriteString(strings.TrimSpace(segmentText(seg, variant)))
			b.WriteString("\n\n")
		}
	} else {
		for i, seg := range doc.Segments {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "%d\n", i+1)
			b.WriteString(formatTimestamp(seg.Start, sep))
			b.WriteString(" --> ")
			b.WriteString(formatTimestamp(seg.End, sep))
			b.WriteByte('\n')
			b.WriteString(strings.TrimSpace(segmentText(seg, variant)))
		}
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}

func renderText(doc *Document, variant model.Variant) (string, error) {
	if variant != model.VariantSource && variant != model.VariantTranslated {
		return "", fmt.Errorf("variant %q is not supported for txt", variant)
	}
	lines := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		lines = append(lines, strings.TrimSpace(segmentText(seg, variant)))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n", nil
}

func renderHTML(doc *Document) string {
	var rows strings.Builder
	for _, seg := range doc.Segments {
		fmt.Fprintf(&rows,
			"<tr><td>%d</td><td>%.2f</td><td>%.2f</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			seg.ID, seg.Start, seg.End,
			html.EscapeString(seg.Text),
			html.EscapeString(seg.TranslatedText),
			html.EscapeString(seg.Speaker),
		)
	}

	detected := doc.DetectedLanguage
	if detected == "" {
		detected = "unknown"
	}

	return "<!doctype html>" +
		"<html><head><meta charset='utf-8'><title>Transcript</title>" +
		"<style>body{font-family:ui-sans-serif,system-ui}table{border-collapse:collapse;width:100%}" +
		"td,th{border:1px solid #ccc;padding:6px;text-align:left}th{background:#f3f4f6}</style></head><body>" +
		fmt.Sprintf("<h1>Transcript (%s / %s)</h1>", html.EscapeString(doc.Provider), html.EscapeString(doc.Model)) +
		fmt.Sprintf("<p>Detected language: %s</p>", html.EscapeString(detected)) +
		"<table><thead><tr><th>#</th><th>Start</th><th>End</th><th>Source</th><th>Translated</th><th>Speaker</th></tr></thead>" +
		"<tbody>" + rows.String() + "</tbody></table></body></html>"
}

func renderJSON(doc *Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	return string(data), nil
}
