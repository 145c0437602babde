package video

import "time"

// Frame is one captured image. Data holds JPEG bytes and is never
// modified after the frame is stored.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time

	// Seq is assigned by the Store, monotonically increasing per process.
	Seq uint64
}

// Clone returns a deep copy so the caller owns its bytes.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}
