package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/phototag/exifgps"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "tag":
		if err := runTag(os.Args[2:]); err != nil {
			fail(err)
		}
	case "show":
		if err := runShow(os.Args[2:]); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gpstag <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  tag  -in input.jpg -out output.jpg -lat 48.1 -lon 11.5 [-time 2023-05-01T10:30:00Z] [-speed 50] [-ele -12.5] [-bearing 270] [-lossy]")
	fmt.Fprintln(os.Stderr, "  show -in input.jpg")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func runTag(args []string) error {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	inPath := fs.String("in", "", "source image (JPEG or TIFF)")
	outPath := fs.String("out", "", "destination image")
	lat := fs.Float64("lat", 0, "latitude in signed degrees")
	lon := fs.Float64("lon", 0, "longitude in signed degrees")
	ts := fs.String("time", "", "UTC timestamp, RFC 3339 (optional)")
	speed := fs.String("speed", "", "speed in km/h (optional)")
	ele := fs.String("ele", "", "elevation in meters, signed (optional)")
	bearing := fs.String("bearing", "", "bearing in degrees (optional)")
	lossy := fs.Bool("lossy", false, "tolerate and drop unparseable JPEG segments")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return fmt.Errorf("-in and -out are required")
	}

	r := exifgps.GpsReading{Latitude: *lat, Longitude: *lon}
	if *ts != "" {
		t, err := time.Parse(time.RFC3339, *ts)
		if err != nil {
			return fmt.Errorf("parse -time: %w", err)
		}
		t = t.UTC()
		r.Time = &t
	}
	var err error
	if r.SpeedKmh, err = optFloat("speed", *speed); err != nil {
		return err
	}
	if r.EleMeters, err = optFloat("ele", *ele); err != nil {
		return err
	}
	if r.BearingDeg, err = optFloat("bearing", *bearing); err != nil {
		return err
	}

	return exifgps.SetGpsTag(*inPath, *outPath, r, *lossy)
}

func optFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return nil, fmt.Errorf("parse -%s: %w", name, err)
	}

	return &v, nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	inPath := fs.String("in", "", "image to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return fmt.Errorf("-in is required")
	}

	info, err := exifgps.ReadGps(*inPath)
	if err != nil {
		return err
	}

	fmt.Printf("latitude:  %.7f\n", info.Latitude)
	fmt.Printf("longitude: %.7f\n", info.Longitude)
	if info.EleMeters != nil {
		fmt.Printf("elevation: %.2f m\n", *info.EleMeters)
	}
	if info.Time != nil {
		fmt.Printf("time:      %s\n", info.Time.Format(time.RFC3339))
	}

	return nil
}
