package ytdlp

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/auddy/backend/internal/logger"
)

// Progress is one "[download]" status line emitted by yt-dlp.
type Progress struct {
	Percent float64
	Total   string
	Speed   string
	ETA     string
}

// [download]  42.3% of   3.51MiB at  1.20MiB/s ETA 00:02
var progressRe = regexp.MustCompile(`^\[download\]\s+([\d.]+)%(?:\s+of\s+~?\s*(\S+))?(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

// ParseProgress parses a yt-dlp progress line.
func ParseProgress(line string) (Progress, bool) {
	m := progressRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	return Progress{Percent: pct, Total: m[2], Speed: m[3], ETA: m[4]}, true
}

// logProgress logs at most one line per 25% step so long downloads stay readable.
func (s *Service) logProgress(ctx context.Context, sourceURL, output string) {
	next := 0.0
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		p, ok := ParseProgress(scanner.Text())
		if !ok || p.Percent < next {
			continue
		}
		s.log.Debug(ctx, "download progress", logger.Fields{
			"url":     sourceURL,
			"percent": p.Percent,
			"total":   p.Total,
			"speed":   p.Speed,
			"eta":     p.ETA,
		})
		for next <= p.Percent {
			next += 25
		}
	}
}
