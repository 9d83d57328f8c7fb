package metadata

import (
	"testing"
	"time"
)

func TestTimestampFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string // RFC3339, empty means nil
	}{
		{"messenger export", "Photo 2021-06-15 at 14.30.05.jpeg", "2021-06-15T14:30:05Z"},
		{"messenger export pre-2000", "Photo 1999-06-15 at 14.30.05.jpeg", "1999-06-15T14:30:05Z"},
		{"phone camera", "IMG_20210615_143005.jpg", "2021-06-15T14:30:05Z"},
		{"video prefix", "VID_20191231_235959.mp4", "2019-12-31T23:59:59Z"},
		{"no timestamp", "DSC01234.jpg", ""},
		{"digit run year too old", "IMG_19990615_143005.jpg", ""},
		{"digit run year too far", "IMG_21500615_143005.jpg", ""},
		{"invalid month", "IMG_20211315_143005.jpg", ""},
		{"plain name", "beach.png", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TimestampFromFilename(tc.filename)
			if tc.expected == "" {
				if got != nil {
					t.Errorf("TimestampFromFilename(%q) = %v; want nil", tc.filename, got)
				}
				return
			}
			want, _ := time.Parse(time.RFC3339, tc.expected)
			if got == nil || !got.Equal(want) {
				t.Errorf("TimestampFromFilename(%q) = %v; want %v", tc.filename, got, want)
			}
		})
	}
}

func TestExtractNoExif(t *testing.T) {
	out := Extract([]byte("definitely not a jpeg"), "IMG_20220101_120000.jpg")

	if out.Orientation != 1 {
		t.Errorf("orientation = %d; want default 1", out.Orientation)
	}
	if out.TakenAt == nil {
		t.Fatal("expected filename fallback timestamp")
	}
	if out.TakenAt.Year() != 2022 {
		t.Errorf("fallback year = %d; want 2022", out.TakenAt.Year())
	}
	if out.GPSLat != nil || out.GPSLng != nil {
		t.Error("no EXIF should mean no GPS")
	}
}
