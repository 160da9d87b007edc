package exifgps

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/png"

	exif "github.com/dsoprea/go-exif/v3"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	jpegSOISig = []byte{0xFF, 0xD8}
	tiffLESig  = []byte{'I', 'I', 0x2A, 0x00}
	tiffBESig  = []byte{'M', 'M', 0x00, 0x2A}
)

// sourceMeta is the loader output: the container kind plus whatever seeds
// the output set. raw is the embedded EXIF blob (for a TIFF source, the
// whole file), nil when the source carries none. tiff is the parsed source
// layout needed for the format-preserving TIFF rewrite.
type sourceMeta struct {
	kind containerKind
	raw  []byte
	tiff *tiffLayout
}

// loadMetadata classifies the source container and extracts the embedded
// metadata tree, if any. A source that is no image at all fails with
// ReadError; a valid image without metadata is not an error.
func loadMetadata(path string, data []byte) (*sourceMeta, error) {
	switch {
	case bytes.HasPrefix(data, jpegSOISig):
		raw, err := exif.SearchAndExtractExif(data)
		if err != nil {
			if errors.Is(err, exif.ErrNoExif) {
				return &sourceMeta{kind: kindJPEG}, nil
			}
			return nil, &ReadError{Path: path, Err: err}
		}
		return &sourceMeta{kind: kindJPEG, raw: raw}, nil

	case bytes.HasPrefix(data, tiffLESig) || bytes.HasPrefix(data, tiffBESig):
		lay, err := parseTiffLayout(data)
		if err != nil {
			return nil, &ReadError{Path: path, Err: err}
		}
		// A TIFF file is itself an EXIF-structured blob.
		return &sourceMeta{kind: kindTIFF, raw: data, tiff: lay}, nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return &sourceMeta{kind: kindNone}, nil
}
