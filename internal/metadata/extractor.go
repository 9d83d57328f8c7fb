package metadata

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Extracted holds everything pulled from an original's EXIF block.
type Extracted struct {
	TakenAt     *time.Time
	CameraMake  string
	CameraModel string
	GPSLat      *float64
	GPSLng      *float64
	Orientation int
}

// Extract reads EXIF from original bytes. Images without EXIF are common
// (screenshots, exports), so a parse failure returns an empty result, not
// an error.
func Extract(data []byte, filename string) Extracted {
	out := Extracted{Orientation: 1}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		out.TakenAt = TimestampFromFilename(filename)
		return out
	}

	if t, err := x.DateTime(); err == nil {
		out.TakenAt = &t
	} else {
		out.TakenAt = TimestampFromFilename(filename)
	}

	out.CameraMake = stringTag(x, exif.Make)
	out.CameraModel = stringTag(x, exif.Model)

	if lat, lng, err := x.LatLong(); err == nil {
		out.GPSLat = &lat
		out.GPSLng = &lng
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil && o >= 1 && o <= 8 {
			out.Orientation = o
		}
	}

	return out
}

func stringTag(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil || tag == nil || tag.Format() != tiff.StringVal {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

var (
	// "Photo 2021-06-15 at 14.30.05.jpg" style names from messenger exports.
	reSpelledTimestamp = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2}) at (\d{2})\.(\d{2})\.(\d{2})`)
	// "IMG_20210615_143005.jpg" style names from phone cameras.
	reCompactTimestamp = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)
)

// TimestampFromFilename recovers a capture time from common filename
// patterns when EXIF is missing. The compact digit-run pattern matches
// arbitrary number sequences too easily, so only it rejects years outside
// 2000..2099; the spelled-out pattern is unambiguous and takes any year.
func TimestampFromFilename(filename string) *time.Time {
	if t := parseStamp(reSpelledTimestamp.FindStringSubmatch(filename)); t != nil {
		return t
	}
	t := parseStamp(reCompactTimestamp.FindStringSubmatch(filename))
	if t != nil && (t.Year() < 2000 || t.Year() > 2099) {
		return nil
	}
	return t
}

func parseStamp(m []string) *time.Time {
	if m == nil {
		return nil
	}
	stamp := fmt.Sprintf("%s-%s-%sT%s:%s:%s", m[1], m[2], m[3], m[4], m[5], m[6])
	t, err := time.ParseInLocation("2006-01-02T15:04:05", stamp, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
