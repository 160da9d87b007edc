package exifgps

import (
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
)

// Tag names as registered in the standard GPS tag index.
var gpsTagNames = map[uint16]string{
	tagGPSVersionID:       "GPSVersionID",
	tagGPSLatitudeRef:     "GPSLatitudeRef",
	tagGPSLatitude:        "GPSLatitude",
	tagGPSLongitudeRef:    "GPSLongitudeRef",
	tagGPSLongitude:       "GPSLongitude",
	tagGPSAltitudeRef:     "GPSAltitudeRef",
	tagGPSAltitude:        "GPSAltitude",
	tagGPSTimeStamp:       "GPSTimeStamp",
	tagGPSSpeedRef:        "GPSSpeedRef",
	tagGPSSpeed:           "GPSSpeed",
	tagGPSImgDirectionRef: "GPSImgDirectionRef",
	tagGPSImgDirection:    "GPSImgDirection",
	tagGPSDateStamp:       "GPSDateStamp",
}

// applyGpsDirectory transfers the directory into the GPS IFD builder.
// Prior occurrences of each tag are deleted first; tags the directory does
// not carry stay untouched in the builder.
func applyGpsDirectory(gpsIb *exif.IfdBuilder, d *gpsDirectory) error {
	for _, f := range d.fields {
		if _, err := gpsIb.DeleteAll(f.id); err != nil {
			return fmt.Errorf("delete tag 0x%04x: %w", f.id, err)
		}

		name, ok := gpsTagNames[f.id]
		if !ok {
			panic(fmt.Sprintf("unmapped GPS tag 0x%04x", f.id))
		}

		var value interface{}
		switch f.typ {
		case typeByte:
			value = f.byteVal
		case typeASCII:
			value = f.strVal
		case typeRational:
			value = f.ratVal
		default:
			panic(fmt.Sprintf("unsupported GPS field type %d", f.typ))
		}

		if err := gpsIb.AddStandardWithName(name, value); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}

	return nil
}
