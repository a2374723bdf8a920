package source

import (
	"net/url"
	"regexp"
	"strings"
)

var driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)

// DriveFileID extracts the file identifier from a Google Drive link. It
// understands /file/d/{id}, /open?id=, /uc?id= and the trailing /view
// form, and returns "" for anything else.
func DriveFileID(rawURL string) string {
	if m := driveFilePath.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	path := parsed.Path
	id := parsed.Query().Get("id")

	if strings.Contains(path, "open") && id != "" {
		return id
	}
	if strings.Contains(path, "uc") && id != "" {
		return id
	}
	if strings.Contains(path, "view") {
		parts := strings.Split(path, "/")
		if len(parts) >= 3 {
			return parts[len(parts)-2]
		}
	}

	return ""
}
