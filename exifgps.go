package exifgps

import (
	"bufio"
	"os"
)

// SetGpsTag writes the GPS reading into the EXIF/TIFF metadata of sourceFile
// and stores the result at destFile, preserving all other metadata.
//
// For JPEG sources, lossy selects the rewrite strategy: a tolerant one that
// may drop segments it cannot parse, or a strict one that preserves every
// byte it does not need to touch and fails on inputs it cannot fully
// segment. The flag has no effect on TIFF sources.
//
// The destination is created or truncated. On failure it may contain a
// partial file, but the stream itself is always flushed and closed.
func SetGpsTag(sourceFile, destFile string, r GpsReading, lossy bool) error {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return &ReadError{Path: sourceFile, Err: err}
	}

	src, err := loadMetadata(sourceFile, data)
	if err != nil {
		return err
	}

	out, err := newOutputSet(src)
	if err != nil {
		return &IoOrFormatError{Path: destFile, Err: err}
	}

	writeGpsFields(out.gps, r)
	if out.gpsIb != nil {
		if err := applyGpsDirectory(out.gpsIb, out.gps); err != nil {
			return &IoOrFormatError{Path: destFile, Err: err}
		}
	}

	return serialize(out, data, destFile, lossy)
}

// serialize writes the updated set to destFile with the strategy selected by
// container kind. The destination stream is flushed and closed on every exit
// path.
func serialize(out *tagOutputSet, data []byte, destFile string, lossy bool) (err error) {
	f, err := os.Create(destFile)
	if err != nil {
		return &IoOrFormatError{Path: destFile, Err: err}
	}
	bw := bufio.NewWriter(f)
	defer func() {
		ferr := bw.Flush()
		if cerr := f.Close(); ferr == nil {
			ferr = cerr
		}
		if err == nil && ferr != nil {
			err = &IoOrFormatError{Path: destFile, Err: ferr}
		}
	}()

	switch {
	case out.kind == kindJPEG && lossy:
		err = writeJpegLossy(bw, data, out.rootIb)
	case out.kind == kindJPEG:
		err = writeJpegPreserving(bw, data, out.rootIb)
	case out.kind == kindTIFF:
		err = rewriteTiff(bw, data, out.tiff, out.gps)
	default:
		// No prior container to preserve: emit the set as a bare TIFF.
		err = writeTiffFromSet(bw, out.rootIb)
	}
	if err != nil {
		err = &IoOrFormatError{Path: destFile, Err: err}
	}

	return err
}
