// Package audiotest builds WAV payloads for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
)

// SampleRate is the rate used by tests unless stated otherwise.
const SampleRate = 24000

// PCM16 returns a mono 16-bit PCM WAV file holding the given number of
// samples. Each sample is derived from seed so different payloads differ.
func PCM16(samples int, seed byte) []byte {
	data := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int(seed)*31+i))
	}

	var buf bytes.Buffer

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

// WithText returns a WAV whose length depends on text, so callers can tell
// which input produced a response.
func WithText(text string) []byte {
	var seed byte
	for i := range len(text) {
		seed += text[i]
	}

	return PCM16(SampleRate/10+len(text)*100, seed)
}
