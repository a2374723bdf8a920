package extraction

import (
	"fmt"
	"strings"
)

// Format is a supported output audio format.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatAAC  Format = "aac"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
)

// DefaultFormat is used when a submission names no format.
const DefaultFormat = FormatMP3

// FormatOption is a format value with its display label.
type FormatOption struct {
	Value Format `json:"value"`
	Label string `json:"label"`
}

var formatOptions = []FormatOption{
	{Value: FormatMP3, Label: "MP3"},
	{Value: FormatAAC, Label: "AAC"},
	{Value: FormatWAV, Label: "WAV"},
	{Value: FormatFLAC, Label: "FLAC"},
	{Value: FormatOGG, Label: "OGG"},
	{Value: FormatM4A, Label: "M4A"},
}

// Formats lists every recognized format in display order.
func Formats() []FormatOption {
	out := make([]FormatOption, len(formatOptions))
	copy(out, formatOptions)
	return out
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return DefaultFormat, nil
	}
	for _, opt := range formatOptions {
		if opt.Value == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported audio format %q", s)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

var contentTypes = map[Format]string{
	FormatMP3:  "audio/mpeg",
	FormatAAC:  "audio/aac",
	FormatWAV:  "audio/wav",
	FormatFLAC: "audio/flac",
	FormatOGG:  "audio/ogg",
	FormatM4A:  "audio/mp4",
}

// ContentType returns the MIME type of files in this format.
func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (f Format) String() string {
	return string(f)
}
