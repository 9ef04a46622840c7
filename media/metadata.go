package media

import (
	"bytes"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		val = tag.String()
	}
	// val string might have null chars at the end
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// ExtractMetadata combines the validated dimensions with whatever EXIF data the
// payload carries. a payload without EXIF is not an error.
func ExtractMetadata(data []byte, decoded *DecodedImage) *Metadata {
	meta := &Metadata{}
	if decoded != nil {
		w, h, f := decoded.Width, decoded.Height, decoded.Format
		meta.Width = &w
		meta.Height = &h
		meta.Format = &f
	}

	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta
}
