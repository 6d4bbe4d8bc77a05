package transcript

// Segment is one timed span of transcribed speech.
type Segment struct {
	ID             int     `json:"id"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translated_text,omitempty"`
	Speaker        string  `json:"speaker,omitempty"`
}

// Document is the normalized transcript produced by a provider adapter.
// It lives only for the duration of one file's processing: the translation
// orchestrator fills in TranslatedText, the renderer consumes it, and it is
// discarded once artifacts are persisted.
type Document struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	Segments         []Segment `json:"segments"`
}

// HasTranslation reports whether any segment carries translated text.
func (d *Document) HasTranslation() bool {
	for _, s := range d.Segments {
		if s.TranslatedText != "" {
			return true
		}
	}
	return false
}
