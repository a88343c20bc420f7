package mixer

// SampleFormat is the closed set of PCM encodings the normalizer accepts.
type SampleFormat int

const (
	// FormatInt16 is interleaved signed 16-bit little-endian PCM.
	FormatInt16 SampleFormat = iota
	// FormatFloat32 is interleaved IEEE-754 32-bit little-endian PCM.
	FormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "int16"
	case FormatFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// bytesPerSample returns the stride of a single sample of this format.
func (f SampleFormat) bytesPerSample() int {
	if f == FormatFloat32 {
		return 4
	}
	return 2
}

// BlockFormat describes a raw capture block as delivered by a collaborator.
// Capture layers report whatever the OS hands them; ResolveSampleFormat maps
// the raw flags onto the closed SampleFormat set.
type BlockFormat struct {
	SampleRate     int
	Channels       int
	BitsPerSample  int
	Float          bool
	NonInterleaved bool
}

// ResolveSampleFormat validates the raw format flags. Anything outside
// 16-bit int / 32-bit float interleaved is unsupported and reported with the
// offending flags so the capture layer can be diagnosed.
func (f BlockFormat) ResolveSampleFormat() (SampleFormat, error) {
	if f.NonInterleaved {
		return 0, &UnsupportedFormatError{Float: f.Float, BitsPerSample: f.BitsPerSample, NonInterleaved: true}
	}
	switch {
	case f.BitsPerSample == 16 && !f.Float:
		return FormatInt16, nil
	case f.BitsPerSample == 32 && f.Float:
		return FormatFloat32, nil
	default:
		return 0, &UnsupportedFormatError{Float: f.Float, BitsPerSample: f.BitsPerSample}
	}
}

// Block is a raw PCM block from a capture collaborator: interleaved
// little-endian sample data plus its format descriptor.
type Block struct {
	Format BlockFormat
	Data   []byte
}
