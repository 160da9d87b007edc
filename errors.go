package exifgps

// ReadError reports a source file that could not be parsed as an image
// container at all. A parseable image without metadata is not a ReadError.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return "read " + e.Path + ": " + e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }

// IoOrFormatError reports a re-serialization or destination write fault.
// Read-phase and write-phase failures of the underlying codec were
// historically distinct conditions; callers get a single type with the
// original diagnostic preserved.
type IoOrFormatError struct {
	Path string
	Err  error
}

func (e *IoOrFormatError) Error() string { return "write " + e.Path + ": " + e.Err.Error() }

func (e *IoOrFormatError) Unwrap() error { return e.Err }
