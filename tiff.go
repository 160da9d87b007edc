package exifgps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// ifdEntry is one 12-byte TIFF directory entry, kept verbatim alongside its
// parsed tag id so that unmanaged entries survive a rewrite untouched.
type ifdEntry struct {
	tag uint16
	raw [12]byte
}

// tiffLayout is the top-level structure of a TIFF source needed to rewrite
// its GPS directory while leaving every original byte in place.
type tiffLayout struct {
	order    binary.ByteOrder
	ifd0     []ifdEntry
	ifd0Next uint32
	gps      []ifdEntry
	gpsNext  uint32
}

func parseTiffLayout(data []byte) (*tiffLayout, error) {
	if len(data) < 8 {
		return nil, errors.New("tiff header too small")
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, errors.New("tiff endian invalid")
	}
	if order.Uint16(data[2:4]) != 0x002A {
		return nil, errors.New("tiff magic invalid")
	}

	lay := &tiffLayout{order: order}

	ifd0Offset := int(order.Uint32(data[4:8]))
	var err error
	lay.ifd0, lay.ifd0Next, err = readIfd(data, order, ifd0Offset)
	if err != nil {
		return nil, fmt.Errorf("ifd0: %w", err)
	}

	for _, e := range lay.ifd0 {
		if e.tag != tagGPSInfo {
			continue
		}
		gpsOffset := entryOffsetValue(order, e)
		lay.gps, lay.gpsNext, err = readIfd(data, order, gpsOffset)
		if err != nil {
			return nil, fmt.Errorf("gps ifd: %w", err)
		}
		break
	}

	return lay, nil
}

func readIfd(data []byte, order binary.ByteOrder, offset int) ([]ifdEntry, uint32, error) {
	if offset < 0 || offset+2 > len(data) {
		return nil, 0, errors.New("offset out of bounds")
	}
	count := int(order.Uint16(data[offset : offset+2]))
	end := offset + 2 + count*12
	if end+4 > len(data) {
		return nil, 0, errors.New("directory truncated")
	}

	entries := make([]ifdEntry, 0, count)
	pos := offset + 2
	for i := 0; i < count; i++ {
		var e ifdEntry
		copy(e.raw[:], data[pos:pos+12])
		e.tag = order.Uint16(e.raw[0:2])
		entries = append(entries, e)
		pos += 12
	}

	return entries, order.Uint32(data[end : end+4]), nil
}

// entryOffsetValue reads an entry's value slot as a file offset, honoring
// the declared field type width.
func entryOffsetValue(order binary.ByteOrder, e ifdEntry) int {
	if order.Uint16(e.raw[2:4]) == 3 { // SHORT
		return int(order.Uint16(e.raw[8:10]))
	}
	return int(order.Uint32(e.raw[8:12]))
}

// rewriteTiff writes the updated TIFF: the source bytes stay verbatim, a
// freshly encoded GPS directory and an updated IFD0 copy are appended, and
// the header's first-directory offset is patched. Copied entries keep their
// absolute value offsets, which stay valid because no original byte moves.
func rewriteTiff(w io.Writer, data []byte, lay *tiffLayout, d *gpsDirectory) error {
	// Prior GPS entries not managed by this write are carried over verbatim.
	var entries []ifdEntry
	for _, e := range lay.gps {
		if _, ok := d.lookup(e.tag); !ok {
			entries = append(entries, e)
		}
	}

	base := len(data)
	headPad := base % 2
	gpsOffset := base + headPad
	gpsCount := len(entries) + len(d.fields)
	valueBase := gpsOffset + 2 + gpsCount*12 + 4

	var values bytes.Buffer
	for _, f := range d.fields {
		entries = append(entries, encodeGpsEntry(lay.order, f, valueBase, &values))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// IFD0 copy with the GPS pointer set or inserted.
	var gpsPtr ifdEntry
	gpsPtr.tag = tagGPSInfo
	lay.order.PutUint16(gpsPtr.raw[0:2], tagGPSInfo)
	lay.order.PutUint16(gpsPtr.raw[2:4], typeLong)
	lay.order.PutUint32(gpsPtr.raw[4:8], 1)
	lay.order.PutUint32(gpsPtr.raw[8:12], uint32(gpsOffset))

	var ifd0 []ifdEntry
	for _, e := range lay.ifd0 {
		if e.tag != tagGPSInfo {
			ifd0 = append(ifd0, e)
		}
	}
	ifd0 = append(ifd0, gpsPtr)
	sort.Slice(ifd0, func(i, j int) bool { return ifd0[i].tag < ifd0[j].tag })

	ifd0Offset := valueBase + values.Len()
	ifd0Pad := ifd0Offset % 2
	ifd0Offset += ifd0Pad

	head := append([]byte(nil), data...)
	lay.order.PutUint32(head[4:8], uint32(ifd0Offset))

	var out bytes.Buffer
	out.Write(head)
	for i := 0; i < headPad; i++ {
		out.WriteByte(0)
	}
	writeIfd(&out, lay.order, entries, lay.gpsNext)
	out.Write(values.Bytes())
	for i := 0; i < ifd0Pad; i++ {
		out.WriteByte(0)
	}
	writeIfd(&out, lay.order, ifd0, lay.ifd0Next)

	_, err := w.Write(out.Bytes())

	return err
}

// encodeGpsEntry encodes one managed field as a directory entry, spilling
// values wider than four bytes into the shared value area at valueBase.
func encodeGpsEntry(order binary.ByteOrder, f gpsField, valueBase int, values *bytes.Buffer) ifdEntry {
	var val []byte
	var count uint32
	switch f.typ {
	case typeByte:
		val = f.byteVal
		count = uint32(len(f.byteVal))
	case typeASCII:
		val = append([]byte(f.strVal), 0)
		count = uint32(len(val))
	case typeRational:
		val = encodeRationals(order, f.ratVal)
		count = uint32(len(f.ratVal))
	default:
		panic(fmt.Sprintf("unsupported GPS field type %d", f.typ))
	}

	var e ifdEntry
	e.tag = f.id
	order.PutUint16(e.raw[0:2], f.id)
	order.PutUint16(e.raw[2:4], f.typ)
	order.PutUint32(e.raw[4:8], count)

	if len(val) <= 4 {
		copy(e.raw[8:12], val)
		return e
	}

	order.PutUint32(e.raw[8:12], uint32(valueBase+values.Len()))
	values.Write(val)
	if values.Len()%2 == 1 {
		values.WriteByte(0)
	}

	return e
}

func encodeRationals(order binary.ByteOrder, rats []exifcommon.Rational) []byte {
	out := make([]byte, 0, len(rats)*8)
	var tmp [4]byte
	for _, r := range rats {
		order.PutUint32(tmp[:], r.Numerator)
		out = append(out, tmp[:]...)
		order.PutUint32(tmp[:], r.Denominator)
		out = append(out, tmp[:]...)
	}

	return out
}

func writeIfd(out *bytes.Buffer, order binary.ByteOrder, entries []ifdEntry, next uint32) {
	var tmp [4]byte
	order.PutUint16(tmp[:2], uint16(len(entries)))
	out.Write(tmp[:2])
	for _, e := range entries {
		out.Write(e.raw[:])
	}
	order.PutUint32(tmp[:], next)
	out.Write(tmp[:])
}

// writeTiffFromSet emits the output set as a self-contained, metadata-only
// TIFF. Used when the source had no prior container to preserve.
func writeTiffFromSet(w io.Writer, rootIb *exif.IfdBuilder) error {
	blob, err := encodeExifBlob(rootIb)
	if err != nil {
		return err
	}
	_, err = w.Write(blob)

	return err
}
