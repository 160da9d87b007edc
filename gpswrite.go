package exifgps

import (
	"fmt"
	"math"

	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// Fixed reference values: speed in km/h, direction relative to true north.
const (
	speedRefKmh      = "K"
	directionRefTrue = "T"
)

var gpsVersion = []byte{2, 3, 0, 0}

// writeGpsFields applies a reading to the GPS directory in place. Every tag
// this function manages is removed before being re-added, so no duplicate
// entries can occur; tags it does not manage are left alone.
func writeGpsFields(d *gpsDirectory, r GpsReading) {
	d.remove(tagGPSVersionID)
	d.add(gpsField{id: tagGPSVersionID, typ: typeByte, byteVal: gpsVersion})

	if r.Time != nil {
		t := r.Time.UTC()

		d.remove(tagGPSTimeStamp)
		d.add(gpsField{id: tagGPSTimeStamp, typ: typeRational, ratVal: []exifcommon.Rational{
			{Numerator: uint32(t.Hour()), Denominator: 1},
			{Numerator: uint32(t.Minute()), Denominator: 1},
			{Numerator: uint32(t.Second()), Denominator: 1},
		}})

		d.remove(tagGPSDateStamp)
		d.add(gpsField{id: tagGPSDateStamp, typ: typeASCII, strVal: t.Format("2006:01:02")})
	}

	setCoordinate(d, tagGPSLatitudeRef, tagGPSLatitude, r.Latitude, "N", "S")
	setCoordinate(d, tagGPSLongitudeRef, tagGPSLongitude, r.Longitude, "E", "W")

	if r.SpeedKmh != nil {
		d.remove(tagGPSSpeedRef)
		d.add(gpsField{id: tagGPSSpeedRef, typ: typeASCII, strVal: speedRefKmh})

		d.remove(tagGPSSpeed)
		d.add(gpsField{id: tagGPSSpeed, typ: typeRational,
			ratVal: []exifcommon.Rational{floatRational(*r.SpeedKmh)}})
	}

	if r.EleMeters != nil {
		ele := *r.EleMeters
		ref := byte(0)
		if ele < 0 {
			ref = 1
		}

		d.remove(tagGPSAltitudeRef)
		d.add(gpsField{id: tagGPSAltitudeRef, typ: typeByte, byteVal: []byte{ref}})

		d.remove(tagGPSAltitude)
		d.add(gpsField{id: tagGPSAltitude, typ: typeRational,
			ratVal: []exifcommon.Rational{floatRational(math.Abs(ele))}})
	}

	if r.BearingDeg != nil {
		dir := *r.BearingDeg
		// Keep the value in 0.0 <= dir < 360.0.
		if dir < 0 {
			dir = math.Mod(dir, 360) // >-360.0...-0.0
			dir += 360               // >0.0...360.0
		}
		if dir >= 360 {
			dir = math.Mod(dir, 360)
		}

		d.remove(tagGPSImgDirectionRef)
		d.add(gpsField{id: tagGPSImgDirectionRef, typ: typeASCII, strVal: directionRefTrue})

		d.remove(tagGPSImgDirection)
		d.add(gpsField{id: tagGPSImgDirection, typ: typeRational,
			ratVal: []exifcommon.Rational{floatRational(dir)}})
	}
}

// setCoordinate stores a signed-degree value as a hemisphere reference plus
// a degree/minute/second rational triple.
func setCoordinate(d *gpsDirectory, refID, valID uint16, deg float64, pos, neg string) {
	ref := pos
	if deg < 0 {
		ref = neg
		deg = -deg
	}

	whole := math.Floor(deg)
	frac := (deg - whole) * 60
	minutes := math.Floor(frac)
	seconds := (frac - minutes) * 60

	d.remove(refID)
	d.add(gpsField{id: refID, typ: typeASCII, strVal: ref})

	d.remove(valID)
	d.add(gpsField{id: valID, typ: typeRational, ratVal: []exifcommon.Rational{
		{Numerator: uint32(whole), Denominator: 1},
		{Numerator: uint32(minutes), Denominator: 1},
		floatRational(seconds),
	}})
}

// floatRational approximates a non-negative finite value as an unsigned
// rational using continued-fraction convergents bounded to uint32. Invalid
// input is a logic defect in the field encoding, not a runtime condition,
// and panics.
func floatRational(v float64) exifcommon.Rational {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		panic(fmt.Sprintf("value not encodable as unsigned rational: %v", v))
	}
	if v > math.MaxUint32 {
		panic(fmt.Sprintf("rational numerator overflow: %v", v))
	}

	var (
		h0, k0 uint64 = 0, 1
		h1, k1 uint64 = 1, 0
	)
	x := v
	for i := 0; i < 64; i++ {
		a := math.Floor(x)
		h2 := uint64(a)*h1 + h0
		k2 := uint64(a)*k1 + k0
		if h2 > math.MaxUint32 || k2 > math.MaxUint32 {
			break
		}
		h0, k0, h1, k1 = h1, k1, h2, k2
		frac := x - a
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}

	return exifcommon.Rational{Numerator: uint32(h1), Denominator: uint32(k1)}
}
