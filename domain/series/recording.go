package series

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"infodyn/domain/core"
)

// Recording is a named multichannel recording. Each epoch holds the same
// channels as aligned columns; epochs are disjoint realizations pooled into
// one estimate at computation time.
type Recording struct {
	Names  []string
	Epochs []*Multi
}

// NewRecording validates channel/epoch agreement.
func NewRecording(names []string, epochs []*Multi) (*Recording, error) {
	if len(names) == 0 {
		return nil, core.NewDimensionMismatchError("channel count", 1, 0)
	}
	if len(epochs) == 0 {
		return nil, core.NewInsufficientDataError("recording epochs", 1, 0)
	}
	for i, ep := range epochs {
		if ep == nil {
			return nil, fmt.Errorf("%w: epoch %d is nil", core.ErrDimensionMismatch, i)
		}
		if ep.Width() != len(names) {
			return nil, core.NewDimensionMismatchError(fmt.Sprintf("epoch %d channel count", i), len(names), ep.Width())
		}
	}
	return &Recording{Names: names, Epochs: epochs}, nil
}

// Channels returns the number of channels.
func (r *Recording) Channels() int { return len(r.Names) }

// ChannelIndex resolves a channel name, -1 when absent.
func (r *Recording) ChannelIndex(name string) int {
	for i, n := range r.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Channel extracts one channel of one epoch as a scalar series.
func (r *Recording) Channel(epoch, idx int) (*Multi, error) {
	if epoch < 0 || epoch >= len(r.Epochs) {
		return nil, core.NewConfigurationError("epoch", epoch, fmt.Sprintf("must be in [0,%d)", len(r.Epochs)))
	}
	if idx < 0 || idx >= len(r.Names) {
		return nil, core.NewConfigurationError("channel", idx, fmt.Sprintf("must be in [0,%d)", len(r.Names)))
	}
	return FromValues(r.Epochs[epoch].Column(idx))
}

// DataHash fingerprints names and every sample so runs can record which
// data they saw.
func (r *Recording) DataHash() core.DataHash {
	var buf bytes.Buffer
	var word [8]byte
	for _, name := range r.Names {
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	for _, ep := range r.Epochs {
		for t := 0; t < ep.Len(); t++ {
			for j := 0; j < ep.Width(); j++ {
				binary.LittleEndian.PutUint64(word[:], math.Float64bits(ep.At(t, j)))
				buf.Write(word[:])
			}
		}
	}
	return core.NewDataHash(buf.Bytes())
}
