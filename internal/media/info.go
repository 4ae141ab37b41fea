package media

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureInfo is what the zoom panel shows about an image: pixel dimensions
// plus the EXIF basics, when present.
type CaptureInfo struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	TakenAt      *time.Time `json:"taken_at,omitempty"`
	CameraMake   string     `json:"camera_make,omitempty"`
	CameraModel  string     `json:"camera_model,omitempty"`
	ISO          int        `json:"iso,omitempty"`
	FNumber      string     `json:"fnumber,omitempty"`
	ExposureTime string     `json:"exposure_time,omitempty"`
	FocalLength  string     `json:"focal_length,omitempty"`
	GPSLat       *float64   `json:"gps_lat,omitempty"`
	GPSLon       *float64   `json:"gps_lon,omitempty"`
}

// ExtractCaptureInfo reads dimensions and EXIF data from the file at path.
// Files without EXIF (or that fail to parse) still get dimensions; a fully
// zero struct is returned for unreadable files. Never errors: missing
// metadata is normal for screenshots and edited exports.
func ExtractCaptureInfo(path string) CaptureInfo {
	var info CaptureInfo

	f, err := os.Open(path)
	if err != nil {
		return info
	}
	defer f.Close()

	// Header-only decode for dimensions; cheap compared to a full decode.
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	if _, err := f.Seek(0, 0); err != nil {
		return info
	}
	x, err := exif.Decode(f)
	if err != nil {
		return info
	}

	info.CameraMake = exifString(x, exif.Make)
	info.CameraModel = exifString(x, exif.Model)

	if t, err := x.DateTime(); err == nil {
		info.TakenAt = &t
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			info.ISO = v
		}
	}
	if num, den, ok := exifRat(x, exif.FNumber); ok {
		info.FNumber = fmt.Sprintf("f/%.1f", float64(num)/float64(den))
	}
	if num, den, ok := exifRat(x, exif.ExposureTime); ok {
		if num == 1 {
			info.ExposureTime = fmt.Sprintf("1/%d s", den)
		} else {
			info.ExposureTime = fmt.Sprintf("%d/%d s", num, den)
		}
	}
	if num, den, ok := exifRat(x, exif.FocalLength); ok {
		info.FocalLength = fmt.Sprintf("%.0f mm", float64(num)/float64(den))
	}
	if lat, lon, err := x.LatLong(); err == nil {
		info.GPSLat = &lat
		info.GPSLon = &lon
	}

	return info
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// exifRat fetches the first rational value of field, rejecting zero
// denominators.
func exifRat(x *exif.Exif, field exif.FieldName) (num, den int64, ok bool) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, 0, false
	}
	num, den, err = tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}
