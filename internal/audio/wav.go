// Package audio inspects the WAV files produced by the speech engine.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtChunkSize = 16
)

// Common errors for the audio package.
var (
	ErrNotWAV        = errors.New("not a RIFF/WAVE file")
	ErrMissingFormat = errors.New("WAV file has no fmt chunk")
	ErrMissingData   = errors.New("WAV file has no data chunk")
	ErrInvalidFormat = errors.New("invalid WAV format parameters")
	ErrTruncated     = errors.New("WAV data chunk is truncated")
)

// Info describes a WAV file.
type Info struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataOffset    int64
	DataBytes     int64
	FileSize      int64
	Duration      time.Duration
}

// InspectFile reads the header chunks of the WAV file at path.
func InspectFile(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	info, err := Inspect(file)
	if err != nil {
		return Info{}, err
	}

	info.FileSize = stat.Size()

	available := info.FileSize - info.DataOffset
	if info.DataBytes > available {
		return Info{}, fmt.Errorf("%w: header declares %d bytes, file holds %d",
			ErrTruncated, info.DataBytes, available)
	}

	return info, nil
}

// Inspect walks the RIFF chunks of r until it has seen both the fmt and data
// chunks. The sample data itself is skipped, not read.
func Inspect(r io.Reader) (Info, error) {
	header := make([]byte, riffHeaderSize)

	_, err := io.ReadFull(r, header)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var (
		info    Info
		haveFmt bool
		offset  int64 = riffHeaderSize
	)

	chunkHeader := make([]byte, chunkHeaderSize)

	for {
		_, err = io.ReadFull(r, chunkHeader)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if !haveFmt {
				return Info{}, ErrMissingFormat
			}

			return Info{}, ErrMissingData
		}

		if err != nil {
			return Info{}, fmt.Errorf("failed to read chunk header: %w", err)
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))
		offset += chunkHeaderSize

		switch chunkID {
		case "fmt ":
			info, err = readFormat(r, chunkSize)
			if err != nil {
				return Info{}, err
			}

			haveFmt = true
			offset += paddedSize(chunkSize)
		case "data":
			if !haveFmt {
				return Info{}, ErrMissingFormat
			}

			info.DataOffset = offset
			info.DataBytes = chunkSize
			info.Duration = duration(info, chunkSize)

			return info, nil
		default:
			err = skip(r, chunkSize)
			if err != nil {
				return Info{}, err
			}

			offset += paddedSize(chunkSize)
		}
	}
}

func readFormat(r io.Reader, size int64) (Info, error) {
	if size < minFmtChunkSize {
		return Info{}, fmt.Errorf("%w: fmt chunk is %d bytes", ErrInvalidFormat, size)
	}

	body := make([]byte, minFmtChunkSize)

	_, err := io.ReadFull(r, body)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read fmt chunk: %w", err)
	}

	err = skip(r, size-minFmtChunkSize)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
		Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
		SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
		BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
	}

	if info.Channels == 0 || info.SampleRate == 0 || info.BitsPerSample == 0 {
		return Info{}, fmt.Errorf("%w: channels=%d sample_rate=%d bits=%d",
			ErrInvalidFormat, info.Channels, info.SampleRate, info.BitsPerSample)
	}

	return info, nil
}

// paddedSize is the on-disk size of a chunk body, including the pad byte of
// odd-sized chunks.
func paddedSize(size int64) int64 {
	return size + size%2
}

// skip discards a chunk body and its pad byte.
func skip(r io.Reader, size int64) error {
	_, err := io.CopyN(io.Discard, r, paddedSize(size))
	if err != nil {
		return fmt.Errorf("failed to skip chunk: %w", err)
	}

	return nil
}

func duration(info Info, dataBytes int64) time.Duration {
	bytesPerSecond := int64(info.SampleRate) * int64(info.Channels) * int64(info.BitsPerSample/8)
	if bytesPerSecond == 0 {
		return 0
	}

	return time.Duration(dataBytes * int64(time.Second) / bytesPerSecond)
}
