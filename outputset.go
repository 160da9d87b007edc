package exifgps

import (
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

const gpsIfdPath = "IFD/GPSInfo"

// tagOutputSet is the mutable tag-directory set for one tagging operation.
// It is seeded from the source metadata when present and discarded after the
// write completes.
type tagOutputSet struct {
	kind containerKind

	// rootIb and gpsIb drive the JPEG and from-scratch serializations.
	// Both are nil for TIFF sources, which serialize from gps and tiff alone.
	rootIb *exif.IfdBuilder
	gpsIb  *exif.IfdBuilder

	// gps collects the field values this operation writes.
	gps *gpsDirectory

	// tiff is the parsed source layout, TIFF sources only.
	tiff *tiffLayout
}

// newOutputSet produces a set ready for field insertion: seeded from the
// existing metadata tree when one exists, from empty defaults otherwise,
// with the GPS directory obtained or created.
func newOutputSet(src *sourceMeta) (*tagOutputSet, error) {
	out := &tagOutputSet{kind: src.kind, gps: &gpsDirectory{}, tiff: src.tiff}

	// The TIFF rewrite consumes the directory and the parsed layout directly;
	// no builder tree is needed.
	if src.kind == kindTIFF {
		return out, nil
	}

	if len(src.raw) > 0 {
		im, err := exifcommon.NewIfdMappingWithStandard()
		if err != nil {
			return nil, fmt.Errorf("ifd mapping: %w", err)
		}
		ti := exif.NewTagIndex()
		if _, index, err := exif.Collect(im, ti, src.raw); err == nil {
			out.rootIb = exif.NewIfdBuilderFromExistingChain(index.RootIfd)
		}
		// An unusable tree is not an error; start fresh below.
	}
	if out.rootIb == nil {
		rootIb, err := newStandardBuilder()
		if err != nil {
			return nil, err
		}
		out.rootIb = rootIb
	}

	gpsIb, err := exif.GetOrCreateIbFromRootIb(out.rootIb, gpsIfdPath)
	if err != nil {
		return nil, fmt.Errorf("gps directory: %w", err)
	}
	out.gpsIb = gpsIb

	return out, nil
}

// newStandardBuilder constructs an empty root IFD builder with the standard
// tag registry loaded.
func newStandardBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	if err := exif.LoadStandardTags(ti); err != nil {
		return nil, fmt.Errorf("tag index: %w", err)
	}

	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity,
		exifcommon.EncodeDefaultByteOrder), nil
}
