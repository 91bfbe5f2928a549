package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Canonical PCM layout assumed for headerless audio
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	WAVHeaderSize = 44
)

// EncodeWAV wraps raw 16-bit little-endian PCM in a 44-byte WAV header
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, WAVHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// PCMPayload strips a canonical WAV header when present
func PCMPayload(data []byte) []byte {
	if len(data) > WAVHeaderSize && bytes.HasPrefix(data, magicRIFF) {
		return data[WAVHeaderSize:]
	}
	return data
}

// RMS returns the root mean square of 16-bit little-endian samples
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Level maps the loudness of a chunk onto 0..100, where 0 is -60 dBFS or
// quieter and 100 is full scale.
func Level(data []byte) int {
	rms := RMS(PCMPayload(data))
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms/math.MaxInt16)
	level := int(math.Round((db + 60) / 60 * 100))
	switch {
	case level < 0:
		return 0
	case level > 100:
		return 100
	}
	return level
}
