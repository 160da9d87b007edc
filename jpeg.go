package exifgps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	exif "github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerTEM   = 0x01
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
)

var exifSig = []byte{'E', 'x', 'i', 'f', 0, 0}

type appSegment struct {
	marker  byte
	payload []byte
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

// writeJpegPreserving rewrites the JPEG with a strict segment round-trip:
// every byte of segments it does not need to touch is preserved, and inputs
// it cannot fully segment fail rather than being silently truncated.
func writeJpegPreserving(w io.Writer, data []byte, rootIb *exif.IfdBuilder) error {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return err
	}
	sl := intfc.(*jpegstructure.SegmentList)

	if err := sl.SetExif(rootIb); err != nil {
		return err
	}

	return sl.Write(w)
}

// writeJpegLossy rewrites the JPEG from a tolerant segment scan: junk bytes
// between header segments are skipped and segments that cannot be parsed
// are dropped, the EXIF APP1 is replaced with a fresh encoding of the
// output set, and the entropy-coded data from SOS on is copied verbatim.
func writeJpegLossy(w io.Writer, data []byte, rootIb *exif.IfdBuilder) error {
	if len(data) < 2 || data[0] != markerStart || data[1] != markerSOI {
		return errors.New("invalid JPEG")
	}

	blob, err := encodeExifBlob(rootIb)
	if err != nil {
		return err
	}
	exifPayload := append(append([]byte(nil), exifSig...), blob...)
	// The segment length field is 16 bits and includes itself.
	if len(exifPayload)+2 > 0xFFFF {
		return errors.New("EXIF APP1 segment too long")
	}

	var (
		segs []appSegment
		tail []byte
	)
	pos := 2
	for pos+1 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++

		if marker == markerSOS || marker == markerEOI {
			// Entropy-coded data and everything after it pass through as is.
			tail = data[pos-2:]
			break
		}
		if (marker >= 0xD0 && marker <= 0xD7) || marker == markerTEM || marker == markerSOI {
			continue
		}
		if pos+1 >= len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			// Unparseable segment; resync on the next marker.
			pos++
			continue
		}
		segStart := pos + 2
		segEnd := pos + segLen
		if marker == markerAPP1 && bytes.HasPrefix(data[segStart:segEnd], exifSig) {
			pos = segEnd
			continue // replaced by the fresh payload below
		}
		segs = append(segs, appSegment{marker: marker, payload: append([]byte(nil), data[segStart:segEnd]...)})
		pos = segEnd
	}
	if tail == nil {
		return errors.New("no image data found")
	}

	var out bytes.Buffer
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)

	// The EXIF APP1 goes right after a JFIF APP0 header when one is present.
	insertAt := 0
	if len(segs) > 0 && segs[0].marker == markerAPP0 {
		insertAt = 1
	}
	for i, s := range segs {
		if i == insertAt {
			writeAppSegment(&out, markerAPP1, exifPayload)
		}
		writeAppSegment(&out, s.marker, s.payload)
	}
	if insertAt >= len(segs) {
		writeAppSegment(&out, markerAPP1, exifPayload)
	}
	out.Write(tail)

	_, err = w.Write(out.Bytes())

	return err
}

// encodeExifBlob serializes the output set as a self-contained TIFF-
// structured EXIF blob without the APP1 signature prefix.
func encodeExifBlob(rootIb *exif.IfdBuilder) ([]byte, error) {
	return exif.NewIfdByteEncoder().EncodeToExif(rootIb)
}
