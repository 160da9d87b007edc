package exifgps

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

func writeJpegFixture(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeExif(t *testing.T, path string) *exif.Exif {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		t.Fatalf("decode exif of %s: %v", path, err)
	}
	return x
}

func checkVersion(t *testing.T, x *exif.Exif) {
	t.Helper()
	tag, err := x.Get(exif.GPSVersionID)
	if err != nil {
		t.Fatalf("version tag: %v", err)
	}
	for i, want := range []int{2, 3, 0, 0} {
		got, err := tag.Int(i)
		if err != nil || got != want {
			t.Fatalf("version[%d] = %d (%v), want %d", i, got, err, want)
		}
	}
}

func TestSetGpsTagRoundTripJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJpegFixture(t, src)

	ts := time.Date(2023, 5, 1, 10, 30, 0, 0, time.UTC)
	r := GpsReading{Latitude: 48.1, Longitude: 11.5, Time: &ts}
	if err := SetGpsTag(src, dst, r, false); err != nil {
		t.Fatal(err)
	}

	x := decodeExif(t, dst)
	checkVersion(t, x)

	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-48.1) > 1e-6 || math.Abs(lon-11.5) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want 48.1/11.5", lat, lon)
	}

	dateTag, err := x.Get(exif.GPSDateStamp)
	if err != nil {
		t.Fatal(err)
	}
	if date, _ := dateTag.StringVal(); date != "2023:05:01" {
		t.Errorf("date stamp = %q, want 2023:05:01", date)
	}
	timeTag, err := x.Get(exif.GPSTimeStamp)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int64{10, 30, 0} {
		num, den, err := timeTag.Rat2(i)
		if err != nil || den != 1 || num != want {
			t.Errorf("time stamp[%d] = %d/%d (%v), want %d/1", i, num, den, err, want)
		}
	}

	info, err := ReadGps(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Time == nil || !info.Time.Equal(ts) {
		t.Errorf("ReadGps time = %v, want %v", info.Time, ts)
	}

	// The image itself must still decode.
	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output not a decodable image: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 16 {
		t.Errorf("output dimensions %dx%d, want 16x16", cfg.Width, cfg.Height)
	}
}

func TestSetGpsTagIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	writeJpegFixture(t, src)

	ts := time.Date(2021, 12, 31, 23, 59, 58, 0, time.UTC)
	speed := 36.5
	r := GpsReading{Latitude: -33.9, Longitude: 151.2, Time: &ts, SpeedKmh: &speed}

	var outs [2][]byte
	for i := range outs {
		dst := filepath.Join(dir, "dst"+string(rune('a'+i))+".jpg")
		if err := SetGpsTag(src, dst, r, false); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		outs[i] = data
	}
	if !bytes.Equal(outs[0], outs[1]) {
		t.Error("repeated identical calls produced different bytes")
	}
}

func TestOmittedOptionalsAddNoTags(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	srcData := writeJpegFixture(t, src)

	if err := SetGpsTag(src, dst, GpsReading{Latitude: 10, Longitude: 20}, false); err != nil {
		t.Fatal(err)
	}

	x := decodeExif(t, dst)
	for _, name := range []exif.FieldName{
		exif.GPSSpeed, exif.GPSSpeedRef,
		exif.GPSAltitude, exif.GPSAltitudeRef,
		exif.GPSImgDirection, exif.GPSImgDirectionRef,
		exif.GPSDateStamp, exif.GPSTimeStamp,
	} {
		if _, err := x.Get(name); err == nil {
			t.Errorf("tag %s present, should be absent", name)
		}
	}

	// Everything from the start-of-scan marker on is untouched.
	sos := bytes.Index(srcData, []byte{0xFF, 0xDA})
	if sos < 0 {
		t.Fatal("fixture has no SOS marker")
	}
	outData, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(outData, srcData[sos:]) {
		t.Error("entropy-coded data was modified")
	}
}

func TestPriorGpsTagsSurviveRetag(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	mid := filepath.Join(dir, "mid.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJpegFixture(t, src)

	speed := 50.0
	if err := SetGpsTag(src, mid, GpsReading{Latitude: 1, Longitude: 2, SpeedKmh: &speed}, false); err != nil {
		t.Fatal(err)
	}
	if err := SetGpsTag(mid, dst, GpsReading{Latitude: 3, Longitude: 4}, false); err != nil {
		t.Fatal(err)
	}

	x := decodeExif(t, dst)
	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-3) > 1e-6 || math.Abs(lon-4) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want 3/4", lat, lon)
	}

	speedTag, err := x.Get(exif.GPSSpeed)
	if err != nil {
		t.Fatalf("prior speed tag dropped: %v", err)
	}
	num, den, err := speedTag.Rat2(0)
	if err != nil || den == 0 || float64(num)/float64(den) != 50 {
		t.Errorf("prior speed = %d/%d (%v), want 50", num, den, err)
	}
}

func TestNegativeCoordinatesUseSouthWestRefs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJpegFixture(t, src)

	ele := -12.5
	bearing := -10.0
	r := GpsReading{Latitude: -33.9, Longitude: -70.7, EleMeters: &ele, BearingDeg: &bearing}
	if err := SetGpsTag(src, dst, r, false); err != nil {
		t.Fatal(err)
	}

	x := decodeExif(t, dst)
	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat+33.9) > 1e-6 || math.Abs(lon+70.7) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want -33.9/-70.7", lat, lon)
	}

	refTag, err := x.Get(exif.GPSAltitudeRef)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := refTag.Int(0); v != 1 {
		t.Errorf("altitude ref = %d, want 1", v)
	}
	altTag, err := x.Get(exif.GPSAltitude)
	if err != nil {
		t.Fatal(err)
	}
	num, den, _ := altTag.Rat2(0)
	if den == 0 || float64(num)/float64(den) != 12.5 {
		t.Errorf("altitude = %d/%d, want 12.5", num, den)
	}

	dirTag, err := x.Get(exif.GPSImgDirection)
	if err != nil {
		t.Fatal(err)
	}
	num, den, _ = dirTag.Rat2(0)
	if den == 0 || float64(num)/float64(den) != 350 {
		t.Errorf("bearing = %d/%d, want 350", num, den)
	}

	info, err := ReadGps(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.EleMeters == nil || *info.EleMeters != -12.5 {
		t.Errorf("ReadGps elevation = %v, want -12.5", info.EleMeters)
	}
}

func TestMalformedSegmentLossyVsLossless(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	good := writeJpegFixture(t, filepath.Join(dir, "good.jpg"))

	// Junk bytes between SOI and the first segment: a strict rewriter must
	// refuse this, a tolerant one skips them.
	bad := append([]byte(nil), good[:2]...)
	bad = append(bad, 0x00, 0x11, 0x22)
	bad = append(bad, good[2:]...)
	if err := os.WriteFile(src, bad, 0o600); err != nil {
		t.Fatal(err)
	}

	r := GpsReading{Latitude: 48.1, Longitude: 11.5}

	err := SetGpsTag(src, filepath.Join(dir, "strict.jpg"), r, false)
	var ioErr *IoOrFormatError
	if !errors.As(err, &ioErr) {
		t.Fatalf("lossless rewrite of malformed input: got %v, want IoOrFormatError", err)
	}

	dst := filepath.Join(dir, "lossy.jpg")
	if err := SetGpsTag(src, dst, r, true); err != nil {
		t.Fatalf("lossy rewrite of malformed input: %v", err)
	}

	x := decodeExif(t, dst)
	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-48.1) > 1e-6 || math.Abs(lon-11.5) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want 48.1/11.5", lat, lon)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := jpeg.Decode(f); err != nil {
		t.Errorf("lossy output not decodable: %v", err)
	}
}

func TestLossyRejectsOversizedExifSegment(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	base := writeJpegFixture(t, filepath.Join(dir, "base.jpg"))

	// A source whose EXIF already nearly fills the 64 KB APP1 limit: adding
	// the GPS directory pushes the re-encoded payload past it.
	rootIb, err := newStandardBuilder()
	if err != nil {
		t.Fatal(err)
	}
	if err := rootIb.AddStandardWithName("ImageDescription", strings.Repeat("x", 65350)); err != nil {
		t.Fatal(err)
	}
	blob, err := encodeExifBlob(rootIb)
	if err != nil {
		t.Fatal(err)
	}
	payload := append(append([]byte(nil), exifSig...), blob...)
	if len(payload)+2 > 0xFFFF {
		t.Fatalf("fixture APP1 over the segment limit before tagging: %d bytes", len(payload))
	}

	var buf bytes.Buffer
	buf.Write(base[:2])
	writeAppSegment(&buf, markerAPP1, payload)
	buf.Write(base[2:])
	if err := os.WriteFile(src, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2023, 5, 1, 10, 30, 0, 0, time.UTC)
	speed := 50.0
	r := GpsReading{Latitude: 48.1, Longitude: 11.5, Time: &ts, SpeedKmh: &speed}
	err = SetGpsTag(src, filepath.Join(dir, "dst.jpg"), r, true)
	var ioErr *IoOrFormatError
	if !errors.As(err, &ioErr) {
		t.Fatalf("got %v, want IoOrFormatError for an oversized APP1", err)
	}
}

func TestLossyRetagOfTaggedJpeg(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	mid := filepath.Join(dir, "mid.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJpegFixture(t, src)

	speed := 50.0
	if err := SetGpsTag(src, mid, GpsReading{Latitude: 1, Longitude: 2, SpeedKmh: &speed}, false); err != nil {
		t.Fatal(err)
	}
	if err := SetGpsTag(mid, dst, GpsReading{Latitude: 3, Longitude: 4}, true); err != nil {
		t.Fatal(err)
	}

	x := decodeExif(t, dst)
	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-3) > 1e-6 || math.Abs(lon-4) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want 3/4", lat, lon)
	}
	speedTag, err := x.Get(exif.GPSSpeed)
	if err != nil {
		t.Fatalf("prior speed tag dropped: %v", err)
	}
	if num, den, err := speedTag.Rat2(0); err != nil || den == 0 || float64(num)/float64(den) != 50 {
		t.Errorf("prior speed = %d/%d (%v), want 50", num, den, err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := jpeg.Decode(f); err != nil {
		t.Errorf("output not decodable: %v", err)
	}
}

func TestLossyMatchesLosslessSemantics(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	writeJpegFixture(t, src)

	r := GpsReading{Latitude: 52.52, Longitude: 13.405}
	for _, lossy := range []bool{false, true} {
		dst := filepath.Join(dir, "out.jpg")
		if err := SetGpsTag(src, dst, r, lossy); err != nil {
			t.Fatalf("lossy=%v: %v", lossy, err)
		}
		x := decodeExif(t, dst)
		lat, lon, err := x.LatLong()
		if err != nil {
			t.Fatalf("lossy=%v: %v", lossy, err)
		}
		if math.Abs(lat-52.52) > 1e-6 || math.Abs(lon-13.405) > 1e-6 {
			t.Errorf("lossy=%v: lat/lon = %v/%v", lossy, lat, lon)
		}
	}
}

func TestPngSourceRebuildsBareTiff(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.tif")

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := SetGpsTag(src, dst, GpsReading{Latitude: 48.1, Longitude: 11.5}, false); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) < 4 || (out[0] != 'M' && out[0] != 'I') {
		t.Fatalf("output does not start with a TIFF header: % x", out[:4])
	}

	x := decodeExif(t, dst)
	lat, lon, err := x.LatLong()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-48.1) > 1e-6 || math.Abs(lon-11.5) > 1e-6 {
		t.Errorf("lat/lon = %v/%v, want 48.1/11.5", lat, lon)
	}
}

func TestUnreadableSourceFailsWithReadError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(src, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := SetGpsTag(src, filepath.Join(dir, "dst.jpg"), GpsReading{Latitude: 1, Longitude: 2}, false)
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("got %v, want ReadError", err)
	}

	err = SetGpsTag(filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "dst.jpg"),
		GpsReading{Latitude: 1, Longitude: 2}, false)
	if !errors.As(err, &readErr) {
		t.Fatalf("missing source: got %v, want ReadError", err)
	}
}

func TestReadGpsWithoutGpsData(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	writeJpegFixture(t, src)

	if _, err := ReadGps(src); err == nil {
		t.Fatal("expected an error for a file without GPS metadata")
	}
}
