package exifgps

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// GpsInfo is the decoded GPS content of an image file.
type GpsInfo struct {
	Latitude  float64
	Longitude float64
	EleMeters *float64
	Time      *time.Time
}

// ReadGps decodes the GPS position back out of a tagged file. It is the
// inverse of SetGpsTag for the fields the tagger manages, using an
// independent EXIF decoder.
func ReadGps(path string) (*GpsInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, err
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		return nil, err
	}
	info := &GpsInfo{Latitude: lat, Longitude: lon}

	if tag, err := x.Get(exif.GPSAltitude); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			ele := float64(num) / float64(den)
			if ref, err := x.Get(exif.GPSAltitudeRef); err == nil {
				if v, err := ref.Int(0); err == nil && v == 1 {
					ele = -ele
				}
			}
			info.EleMeters = &ele
		}
	}

	if ts, err := gpsDateTime(x); err == nil {
		info.Time = &ts
	}

	return info, nil
}

// gpsDateTime reassembles the UTC instant from the GPS date and time tags.
func gpsDateTime(x *exif.Exif) (time.Time, error) {
	dateTag, err := x.Get(exif.GPSDateStamp)
	if err != nil {
		return time.Time{}, err
	}
	dateStr, err := dateTag.StringVal()
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.Parse("2006:01:02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("gps date stamp %q: %w", dateStr, err)
	}

	timeTag, err := x.Get(exif.GPSTimeStamp)
	if err != nil {
		return time.Time{}, err
	}
	var hms [3]float64
	for i := range hms {
		num, den, err := timeTag.Rat2(i)
		if err != nil {
			return time.Time{}, err
		}
		if den == 0 {
			return time.Time{}, errors.New("gps time stamp denominator zero")
		}
		hms[i] = float64(num) / float64(den)
	}

	sec := int(hms[2])
	nsec := int((hms[2] - float64(sec)) * 1e9)

	return time.Date(date.Year(), date.Month(), date.Day(),
		int(hms[0]), int(hms[1]), sec, nsec, time.UTC), nil
}
