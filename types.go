package exifgps

import (
	"fmt"
	"time"

	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// containerKind identifies the metadata container of a source image. It is
// decided once per operation by the loader and drives both output-set seeding
// and the re-serialization strategy.
type containerKind int

const (
	// kindNone is a readable image of some other format carrying no
	// EXIF/TIFF metadata tree at all.
	kindNone containerKind = iota
	// kindJPEG is a JPEG container, with or without an EXIF segment.
	kindJPEG
	// kindTIFF is a bare TIFF container.
	kindTIFF
)

// GpsReading is the position fix to be written. Latitude and longitude are
// signed degrees; optional fields are nil when not available.
type GpsReading struct {
	Latitude  float64
	Longitude float64

	Time       *time.Time // UTC instant
	SpeedKmh   *float64   // km/h
	EleMeters  *float64   // meters, signed; the sign goes into the reference byte
	BearingDeg *float64   // degrees, normalized into [0,360) on write
}

// TIFF field types used by GPS tags.
const (
	typeByte     uint16 = 1
	typeASCII    uint16 = 2
	typeLong     uint16 = 4
	typeRational uint16 = 5
)

// GPS IFD tag ids.
const (
	tagGPSVersionID       uint16 = 0x0000
	tagGPSLatitudeRef     uint16 = 0x0001
	tagGPSLatitude        uint16 = 0x0002
	tagGPSLongitudeRef    uint16 = 0x0003
	tagGPSLongitude       uint16 = 0x0004
	tagGPSAltitudeRef     uint16 = 0x0005
	tagGPSAltitude        uint16 = 0x0006
	tagGPSTimeStamp       uint16 = 0x0007
	tagGPSSpeedRef        uint16 = 0x000C
	tagGPSSpeed           uint16 = 0x000D
	tagGPSImgDirectionRef uint16 = 0x0010
	tagGPSImgDirection    uint16 = 0x0011
	tagGPSDateStamp       uint16 = 0x001D
)

// IFD0 pointer tag to the GPS sub-directory.
const tagGPSInfo uint16 = 0x8825

// gpsField is one typed entry of the GPS directory. Exactly one value slot
// is populated, according to typ.
type gpsField struct {
	id  uint16
	typ uint16

	byteVal []byte
	strVal  string
	ratVal  []exifcommon.Rational
}

// gpsDirectory is an ordered mapping from GPS tag id to a typed field value.
// Keys are unique: a tag must be removed before it is added again, duplicate
// entries are invalid for downstream readers.
type gpsDirectory struct {
	fields []gpsField
}

func (d *gpsDirectory) remove(id uint16) {
	for i, f := range d.fields {
		if f.id == id {
			d.fields = append(d.fields[:i], d.fields[i+1:]...)
			return
		}
	}
}

func (d *gpsDirectory) add(f gpsField) {
	for _, e := range d.fields {
		if e.id == f.id {
			panic(fmt.Sprintf("duplicate GPS tag 0x%04x", f.id))
		}
	}
	d.fields = append(d.fields, f)
}

func (d *gpsDirectory) lookup(id uint16) (gpsField, bool) {
	for _, f := range d.fields {
		if f.id == id {
			return f, true
		}
	}
	return gpsField{}, false
}
