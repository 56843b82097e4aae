package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// NewWavBuffer wraps raw 16-bit mono PCM in a minimal WAV container. Lifted
// from the teacher's pkg/audio/wav.go, which already is the idiomatic
// stdlib-only shape for this job.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// WriteFile writes a Buffer to path as a mono 16-bit PCM WAV file, the
// format the session recorder uses for raw_input.wav, utterance_<id>.wav,
// and tts_<id>.wav (spec §6 Session recording).
func WriteFile(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(NewWavBuffer(b.PCM(), b.SampleRate))
	return err
}

// Writer incrementally appends PCM to an open WAV file, rewriting the
// RIFF/data size fields on each Close. Used when a recording spans many
// frames and buffering the whole utterance in memory first is wasteful.
type Writer struct {
	f          *os.File
	sampleRate int
	written    uint32
}

// CreateWriter opens path and writes a placeholder WAV header sized for
// zero data bytes; the header is patched on Close.
func CreateWriter(path string, sampleRate int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, sampleRate: sampleRate}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(dataLen uint32) error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(w.sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(w.sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	_, err := w.f.Write(buf.Bytes())
	return err
}

// Write appends PCM samples to the file.
func (w *Writer) Write(pcm []byte) error {
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	n, err := w.f.Write(pcm)
	w.written += uint32(n)
	return err
}

// Close patches the header with the final data length and closes the file.
func (w *Writer) Close() error {
	if err := w.writeHeader(w.written); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
