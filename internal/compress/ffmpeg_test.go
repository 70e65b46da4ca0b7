package compress

import (
	"context"
	"testing"
)

func TestParseProgressTime(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{
			name: "standard status line",
			line: "frame= 1210 fps=240 q=28.0 size=4096KiB time=00:00:50.40 bitrate= 665.7kbits/s speed=10x",
			want: 50.4,
			ok:   true,
		},
		{
			name: "hours and minutes",
			line: "time=01:02:03.00 bitrate=1000kbits/s",
			want: 3723,
			ok:   true,
		},
		{
			name: "no marker",
			line: "Stream #0:0: Video: h264",
			ok:   false,
		},
		{
			name: "malformed time",
			line: "time=garbage ",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProgressTime(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseProgressTime() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseProgressTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPassthrough(t *testing.T) {
	var reported int
	out, err := Passthrough{}.Compress(context.Background(), "/tmp/video.mp4", func(p int) { reported = p })
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if out != "/tmp/video.mp4" {
		t.Errorf("Compress() = %q, want input unchanged", out)
	}
	if reported != 100 {
		t.Errorf("reported progress = %d, want 100", reported)
	}
}
