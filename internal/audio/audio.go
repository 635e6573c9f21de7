// Package audio implements the sound-file boundary: opening an existing
// file for reading and creating a new one for writing, pulled/pushed
// one block of interleaved frames at a time so a file tap composes
// with the rest of the pull-scheduled graph instead of loading a whole
// file into memory up front.
//
// Only the uncompressed PCM WAV container is implemented here; decoding
// compressed formats is out of scope, so this stays on encoding/binary
// rather than reaching for a codec dependency with no other use.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	bitsPerSample = 16
	maxInt16      = 32767.0
)

// File is an open PCM WAV stream, readable or writable but not both,
// matching SndfileSoundFile's open-for-read vs create-for-write split.
type File struct {
	f          *os.File
	numChans   int
	sampleRate float64
	writing    bool
	dataLen    uint32 // bytes written so far, patched into the header on Close
}

// Open opens an existing WAV file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open: %w", err)
	}
	numChans, sampleRate, err := readWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, numChans: numChans, sampleRate: sampleRate}, nil
}

// Create opens a new WAV file for writing at fileSampleRate with
// numChannels channels. threadSampleRate is accepted to mirror the
// original create() signature (a thread running at a different rate
// than the file would need resampling on pull/push) but resampling
// itself is not implemented — a caller driving a file tap at a
// mismatched thread rate gets samples at the file's native rate.
func Create(path string, numChannels int, threadSampleRate, fileSampleRate float64) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create: %w", err)
	}
	if err := writeWAVHeaderPlaceholder(f, numChannels, fileSampleRate); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, numChans: numChannels, sampleRate: fileSampleRate, writing: true}, nil
}

func (f *File) NumChannels() int      { return f.numChans }
func (f *File) SampleRate() float64   { return f.sampleRate }

// Pull reads up to len(buffers[0]) interleaved frames into buffers (one
// slice per channel), returning the number of frames actually read.
// io.EOF itself (not wrapped) is returned once the file is exhausted, matching
// pull()'s "framesRead < requested means end of file" convention.
func (f *File) Pull(buffers [][]float64) (framesRead int, err error) {
	if f.writing {
		return 0, fmt.Errorf("audio: Pull on a file opened for writing")
	}
	if len(buffers) != f.numChans {
		return 0, fmt.Errorf("audio: Pull: have %d channels, buffers has %d", f.numChans, len(buffers))
	}
	want := 0
	if len(buffers) > 0 {
		want = len(buffers[0])
	}

	raw := make([]byte, 2*f.numChans)
	for framesRead < want {
		if _, err := io.ReadFull(f.f, raw); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return framesRead, io.EOF
			}
			return framesRead, fmt.Errorf("audio: pull: %w", err)
		}
		for ch := 0; ch < f.numChans; ch++ {
			sample := int16(binary.LittleEndian.Uint16(raw[ch*2 : ch*2+2]))
			buffers[ch][framesRead] = float64(sample) / maxInt16
		}
		framesRead++
	}
	return framesRead, nil
}

// Push writes numFrames interleaved frames from buffers (one slice per
// channel, the inverse of Pull), clamping to [-1, 1] before quantizing
// to 16-bit PCM.
func (f *File) Push(buffers [][]float64, numFrames int) error {
	if !f.writing {
		return fmt.Errorf("audio: Push on a file opened for reading")
	}
	if len(buffers) != f.numChans {
		return fmt.Errorf("audio: Push: have %d channels, buffers has %d", f.numChans, len(buffers))
	}

	raw := make([]byte, 2*f.numChans)
	for i := 0; i < numFrames; i++ {
		for ch := 0; ch < f.numChans; ch++ {
			s := buffers[ch][i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			binary.LittleEndian.PutUint16(raw[ch*2:ch*2+2], uint16(int16(math.Round(s*maxInt16))))
		}
		if _, err := f.f.Write(raw); err != nil {
			return fmt.Errorf("audio: push: %w", err)
		}
		f.dataLen += uint32(len(raw))
	}
	return nil
}

// Close finalizes the file, patching the WAV header's size fields if
// it was opened for writing.
func (f *File) Close() error {
	if f.writing {
		if err := patchWAVHeader(f.f, f.dataLen); err != nil {
			f.f.Close()
			return err
		}
	}
	return f.f.Close()
}

type wavHeader struct {
	numChans   uint16
	sampleRate uint32
}

func readWAVHeader(f *os.File) (numChans int, sampleRate float64, err error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0, 0, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, 0, fmt.Errorf("audio: not a WAV file")
	}

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(f, chunkHdr[:]); err != nil {
			return 0, 0, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])

		if id == "fmt " {
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return 0, 0, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			numChans = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = float64(binary.LittleEndian.Uint32(body[4:8]))
			continue
		}
		if id == "data" {
			return numChans, sampleRate, nil
		}
		if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
			return 0, 0, fmt.Errorf("audio: skip chunk %q: %w", id, err)
		}
	}
}

// writeWAVHeaderPlaceholder writes a standard 44-byte PCM header with
// size fields zeroed; patchWAVHeader fills them in once the real
// length is known at Close.
func writeWAVHeaderPlaceholder(f *os.File, numChans int, sampleRate float64) error {
	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(numChans))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	byteRate := uint32(sampleRate) * uint32(numChans) * (bitsPerSample / 8)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(numChans*(bitsPerSample/8)))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	_, err := f.Write(hdr[:])
	return err
}

func patchWAVHeader(f *os.File, dataLen uint32) error {
	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return err
	}
	var riffSize [4]byte
	binary.LittleEndian.PutUint32(riffSize[:], 36+dataLen)
	if _, err := f.Write(riffSize[:]); err != nil {
		return err
	}
	if _, err := f.Seek(40, io.SeekStart); err != nil {
		return err
	}
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], dataLen)
	_, err := f.Write(sz[:])
	return err
}
