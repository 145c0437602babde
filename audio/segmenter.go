package audio

import "time"

type SegmenterConfig struct {
	Format Format

	// SilenceThreshold is the RMS at or below which a chunk counts as silent.
	SilenceThreshold float64

	// SilenceDuration of consecutive silent chunks ends an utterance.
	SilenceDuration time.Duration

	// MinSpeech is the shortest buffer that is emitted; anything shorter
	// is treated as a click and dropped.
	MinSpeech time.Duration
}

var DefaultSegmenterConfig = SegmenterConfig{
	Format:           DefaultFormat,
	SilenceThreshold: 0.02,
	SilenceDuration:  800 * time.Millisecond,
	MinSpeech:        500 * time.Millisecond,
}

// Utterance is the concatenation of every chunk seen while speaking,
// including the trailing silence that ended it.
type Utterance struct {
	Samples    []float32
	SampleRate int

	// Voiced spans from the first chunk to the last chunk above threshold.
	Voiced time.Duration
}

func (u *Utterance) Duration() time.Duration {
	return Format{SampleRate: u.SampleRate}.Duration(len(u.Samples))
}

// Segmenter is the IDLE/SPEAKING endpointing state machine. It is owned
// by a single goroutine and holds no shared state.
type Segmenter struct {
	cfg          SegmenterConfig
	silenceLimit int

	speaking bool
	silent   int
	samples  int
	voiced   int
	buffer   []Chunk
}

func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	limit := int(float64(cfg.SilenceDuration) / float64(cfg.Format.ChunkDuration()))
	if limit < 1 {
		limit = 1
	}
	return &Segmenter{cfg: cfg, silenceLimit: limit}
}

// SilenceLimit is the number of consecutive silent chunks that ends an
// utterance.
func (s *Segmenter) SilenceLimit() int {
	return s.silenceLimit
}

func (s *Segmenter) Speaking() bool {
	return s.speaking
}

// Push feeds one chunk. It returns an utterance when this chunk completed
// one that is long enough to keep.
func (s *Segmenter) Push(c Chunk) (*Utterance, bool) {
	if c.RMS > s.cfg.SilenceThreshold {
		s.speaking = true
		s.silent = 0
		s.append(c)
		s.voiced = s.samples
		return nil, false
	}

	if !s.speaking {
		return nil, false
	}

	s.append(c)
	s.silent++
	if s.silent < s.silenceLimit {
		return nil, false
	}

	u := s.flush()
	if s.cfg.Format.Duration(len(u.Samples)) < s.cfg.MinSpeech {
		return nil, false
	}
	return u, true
}

// Reset drops any in-progress utterance and returns to IDLE.
func (s *Segmenter) Reset() {
	s.speaking = false
	s.silent = 0
	s.samples = 0
	s.voiced = 0
	s.buffer = nil
}

func (s *Segmenter) append(c Chunk) {
	s.buffer = append(s.buffer, c)
	s.samples += len(c.Samples)
}

func (s *Segmenter) flush() *Utterance {
	samples := make([]float32, 0, s.samples)
	for _, c := range s.buffer {
		samples = append(samples, c.Samples...)
	}
	u := &Utterance{
		Samples:    samples,
		SampleRate: s.cfg.Format.SampleRate,
		Voiced:     s.cfg.Format.Duration(s.voiced),
	}
	s.Reset()
	return u
}
