// Package source classifies media URLs into the fetcher that can handle them.
package source

import (
	"fmt"
	"net/url"
	"strings"
)

// Type identifies the class of source a URL belongs to.
type Type string

const (
	YouTube      Type = "youtube"
	GoogleDrive  Type = "google_drive"
	GenericVideo Type = "generic_video"
)

// Types lists every source class. Classify always returns one of these.
func Types() []Type {
	return []Type{YouTube, GoogleDrive, GenericVideo}
}

func (t Type) String() string {
	return string(t)
}

// Classify maps rawURL to a source type by inspecting its host. It never
// fails: anything unparseable is GenericVideo and fails later at download.
func Classify(rawURL string) Type {
	host := hostOf(rawURL)

	switch {
	case strings.Contains(host, "youtube"), strings.Contains(host, "youtu.be"):
		return YouTube
	case strings.Contains(host, "drive.google"), strings.Contains(host, "docs.google"):
		return GoogleDrive
	default:
		return GenericVideo
	}
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if parsed.Host == "" && parsed.Scheme == "" {
		// scheme-less input such as "youtu.be/abc"
		if p, err := url.Parse("https://" + rawURL); err == nil {
			parsed = p
		}
	}
	return strings.ToLower(parsed.Host)
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("source url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}
