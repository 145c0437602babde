package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// Format describes the fixed capture layout: mono float samples at
// SampleRate, delivered ChunkSize samples at a time.
type Format struct {
	SampleRate int
	ChunkSize  int
}

var DefaultFormat = Format{SampleRate: 16000, ChunkSize: 1024}

// ChunkDuration is the wall-clock length of one chunk.
func (f Format) ChunkDuration() time.Duration {
	return f.Duration(f.ChunkSize)
}

// Duration converts a sample count to wall-clock time.
func (f Format) Duration(samples int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Chunk is one block of mono samples in [-1, 1] as delivered by the
// capture loop. RMS is computed once at capture time.
type Chunk struct {
	Samples []float32
	RMS     float64
}

func NewChunk(samples []float32) Chunk {
	return Chunk{Samples: samples, RMS: RMS(samples)}
}

func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level is the VU side channel: the capture loop stores the RMS of the
// most recent chunk and UI readers poll it.
type Level struct {
	bits atomic.Uint64
}

func (l *Level) Set(v float64) {
	l.bits.Store(math.Float64bits(v))
}

func (l *Level) Get() float64 {
	return math.Float64frombits(l.bits.Load())
}
