package ytdlp

// Metadata contains extracted information about the media
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
}

// DurationSeconds rounds the reported duration to whole seconds.
func (m *Metadata) DurationSeconds() int {
	if m == nil || m.Duration <= 0 {
		return 0
	}
	return int(m.Duration + 0.5)
}

// YtdlpOutput represents the JSON output from yt-dlp --dump-json
type YtdlpOutput struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	FullTitle  string  `json:"fulltitle"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
	Ext        string  `json:"ext"`
	Filename   string  `json:"_filename"`
}

// ToMetadata converts YtdlpOutput to Metadata
func (o *YtdlpOutput) ToMetadata() *Metadata {
	m := &Metadata{
		ID:         o.ID,
		Title:      o.Title,
		Uploader:   o.Uploader,
		Duration:   o.Duration,
		WebpageURL: o.WebpageURL,
		Extractor:  o.Extractor,
	}
	if m.Title == "" {
		m.Title = o.FullTitle
	}
	if m.Uploader == "" {
		m.Uploader = o.Channel
	}
	return m
}
