package frame

// Sequence is an ordered run of frames sampled at a fixed rate. Index
// order is temporal order.
type Sequence struct {
	FPS    float64
	frames []*Frame
}

// NewSequence builds a sequence. Invalid frames are dropped so every
// analyzer sees same-sized, decodable rasters only.
func NewSequence(fps float64, frames ...*Frame) *Sequence {
	s := &Sequence{FPS: fps, frames: make([]*Frame, 0, len(frames))}
	for _, f := range frames {
		s.Append(f)
	}
	return s
}

// Append adds a frame if it is valid and matches the size of the first one.
func (s *Sequence) Append(f *Frame) bool {
	if !f.Valid() {
		return false
	}
	if len(s.frames) > 0 {
		first := s.frames[0]
		if f.Width != first.Width || f.Height != first.Height {
			return false
		}
	}
	s.frames = append(s.frames, f)
	return true
}

// Len returns the number of frames; a nil sequence is empty.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Frames returns the underlying frames in order.
func (s *Sequence) Frames() []*Frame {
	if s == nil {
		return nil
	}
	return s.frames
}

// Head returns at most the first n frames.
func (s *Sequence) Head(n int) []*Frame {
	if s == nil || n <= 0 {
		return nil
	}
	return s.frames[:min(n, len(s.frames))]
}

// Release drops every frame reference held by the sequence.
func (s *Sequence) Release() {
	if s == nil {
		return
	}
	clear(s.frames)
	s.frames = nil
}
