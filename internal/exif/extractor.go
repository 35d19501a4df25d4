package exif

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"

	// Registered decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"photo-library/internal/logging"
)

// Metadata is everything the extractor can learn from a photo's bytes.
// Fields the file does not carry stay nil.
type Metadata struct {
	Width       *int
	Height      *int
	Aspect      *float64
	TakenAt     *time.Time
	Make        *string
	Model       *string
	Orientation *int
	Fingerprint string
}

// Extract reads a photo file once for each concern: EXIF tags, pixel
// dimensions and a content fingerprint. Absent or unparsable EXIF data is
// normal for scans and screenshots, so it is logged at debug level and the
// extraction carries on.
func Extract(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	meta := &Metadata{}

	if x, err := goexif.Decode(f); err != nil {
		logging.Debug("no EXIF data in %s: %v", path, err)
	} else {
		if taken, err := x.DateTime(); err == nil {
			meta.TakenAt = &taken
		}
		meta.Make = exifString(x, goexif.Make)
		meta.Model = exifString(x, goexif.Model)
		if tag, err := x.Get(goexif.Orientation); err == nil {
			if orientation, err := tag.Int(0); err == nil {
				meta.Orientation = &orientation
			}
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}
	if config, _, err := image.DecodeConfig(f); err != nil {
		logging.Debug("cannot probe dimensions of %s: %v", path, err)
	} else {
		meta.Width = &config.Width
		meta.Height = &config.Height
		if config.Height > 0 {
			aspect := float64(config.Width) / float64(config.Height)
			meta.Aspect = &aspect
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}
	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	meta.Fingerprint = hex.EncodeToString(hash.Sum(nil))

	return meta, nil
}

func exifString(x *goexif.Exif, field goexif.FieldName) *string {
	tag, err := x.Get(field)
	if err != nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil || s == "" {
		return nil
	}
	return &s
}
