package voice

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// MethodSynthetic names the offline synthesizer.
const MethodSynthetic = "synthetic"

const syntheticSampleRate = 8000

// Synthetic produces silent WAV clips sized to the estimated narration length.
type Synthetic struct{}

func NewSynthetic() *Synthetic { return &Synthetic{} }

func (s *Synthetic) Name() string { return MethodSynthetic }

func (s *Synthetic) Available(ctx context.Context) providers.Availability {
	return providers.Ready
}

func (s *Synthetic) Speak(ctx context.Context, line Line) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := EstimateDuration(line.Text)
	return &Clip{Data: silentWAV(d), MIME: "audio/wav", Duration: d}, nil
}

// silentWAV encodes mono 16-bit PCM silence.
func silentWAV(seconds float64) []byte {
	samples := int(seconds * syntheticSampleRate)
	dataLen := uint32(samples * 2)
	var buf bytes.Buffer
	buf.Grow(44 + int(dataLen))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(syntheticSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(syntheticSampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}
