package audio

import "bytes"

// Format is an audio container detected from magic bytes
type Format string

const (
	FormatWAV  Format = "wav"
	FormatWebM Format = "webm"
	FormatMP4  Format = "mp4"
	FormatMP3  Format = "mp3"
	FormatOgg  Format = "ogg"
	FormatRaw  Format = "raw"
)

// MinWebMSize is the smallest payload treated as a real WebM stream
const MinWebMSize = 1000

var (
	magicRIFF = []byte("RIFF")
	magicEBML = []byte{0x1A, 0x45, 0xDF, 0xA3}
	magicFtyp = []byte("ftyp")
	magicID3  = []byte("ID3")
	magicOggS = []byte("OggS")
)

// SniffFormat classifies data by its leading bytes. Anything unrecognised,
// and any EBML stream too short to be real WebM, is classified as raw PCM.
func SniffFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, magicRIFF):
		return FormatWAV
	case bytes.HasPrefix(data, magicEBML):
		if len(data) < MinWebMSize {
			return FormatRaw
		}
		return FormatWebM
	case len(data) >= 8 && bytes.Equal(data[4:8], magicFtyp):
		return FormatMP4
	case bytes.HasPrefix(data, magicID3):
		return FormatMP3
	case bytes.HasPrefix(data, magicOggS):
		return FormatOgg
	default:
		return FormatRaw
	}
}

// Extension returns the file extension for the format, dot included
func (f Format) Extension() string {
	return "." + string(f)
}

// IsContainer reports whether the format carries its own header
func (f Format) IsContainer() bool {
	return f != FormatRaw
}
