package ytdlp

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/toolexec"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line    string
		ok      bool
		percent float64
		speed   string
	}{
		{"[download]  42.3% of    3.51MiB at    1.20MiB/s ETA 00:02", true, 42.3, "1.20MiB/s"},
		{"[download] 100% of 3.51MiB in 00:03", true, 100, ""},
		{"[download] Destination: /tmp/x/Song.webm", false, 0, ""},
		{"[ExtractAudio] Destination: /tmp/x/Song.mp3", false, 0, ""},
		{"", false, 0, ""},
	}

	for _, tt := range tests {
		p, ok := ParseProgress(tt.line)
		if ok != tt.ok {
			t.Errorf("ParseProgress(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if p.Percent != tt.percent {
			t.Errorf("ParseProgress(%q) percent = %v, want %v", tt.line, p.Percent, tt.percent)
		}
		if p.Speed != tt.speed {
			t.Errorf("ParseProgress(%q) speed = %q, want %q", tt.line, p.Speed, tt.speed)
		}
	}
}

func TestExtractAudio_LogsProgress(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	fake := toolexec.NewFake().On("yt-dlp", func(ctx context.Context, args []string) (toolexec.Result, error) {
		name := strings.Replace(argAfter(args, "--output"), "%(title)s.%(ext)s", "Song.mp3", 1)
		if err := os.WriteFile(name, []byte("ID3"), 0o644); err != nil {
			return toolexec.Result{}, err
		}
		stdout := strings.Join([]string{
			"[download]   0.0% of 1.00MiB at 1.00KiB/s ETA 10:00",
			"[download]   5.0% of 1.00MiB at 1.00MiB/s ETA 00:01",
			"[download]  60.0% of 1.00MiB at 1.00MiB/s ETA 00:01",
			"[download] 100% of 1.00MiB in 00:01",
			infoJSON,
		}, "\n")
		return toolexec.Result{Stdout: stdout}, nil
	})
	svc := New(nil, fake).WithLogger(logger.New(&buf, logger.LevelDebug, "test"))

	if _, err := svc.ExtractAudio(context.Background(), "https://youtu.be/abc123", "mp3", dir); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}

	if got := strings.Count(buf.String(), "download progress"); got != 3 {
		t.Errorf("Expected 3 progress lines (0%%, 60%%, 100%%), got %d:\n%s", got, buf.String())
	}
}
