// Package stack models an unwound call stack with inline frame
// expansion and stable frame fingerprints. A fingerprint survives
// re-unwinds of the same logical stack, unlike a raw index, so
// step-over and finish logic keys on fingerprints.
package stack

import "fmt"

// Frame is one entry in the expanded frame list. Inline frames are
// synthesized above the physical frame containing them and share its
// canonical frame address.
type Frame struct {
	// CFA is the canonical frame address of the physical frame. The
	// bottom-most physical frame of a partial unwind may have CFA 0
	// when the unwinder could not compute one.
	CFA uint64
	// IsInline marks frames synthesized from inlined-subroutine info.
	IsInline bool
	// Function is the display name, used only for presentation.
	Function string
	// IP is the code address the frame is executing at.
	IP uint64
}

// Fingerprint identifies a frame independently of its index: the CFA of
// its physical frame plus how many inline expansions above that
// physical frame the frame sits.
type Fingerprint struct {
	CFA         uint64
	InlineDepth int
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("{cfa=0x%x inline=%d}", f.CFA, f.InlineDepth)
}

// Stack is an expanded frame list, index 0 at the top (most recent
// call). The ambiguous-inline count marks top-of-stack inline frames
// whose presence is an artifact of the current instruction pointer
// sitting at the first address of an inlined body; hiding them is a
// display decision and never changes frame indices.
type Stack struct {
	frames                   []Frame
	hideAmbiguousInlineCount int
}

// NewStack builds a stack from an expanded frame list. The top run of
// the list may be inline frames; every inline frame must have a
// physical frame somewhere below it.
func NewStack(frames []Frame) *Stack {
	return &Stack{frames: frames}
}

func (s *Stack) Size() int { return len(s.frames) }

func (s *Stack) FrameAt(index int) (Frame, error) {
	if index < 0 || index >= len(s.frames) {
		return Frame{}, fmt.Errorf("frame index %d out of range (stack has %d)", index, len(s.frames))
	}
	return s.frames[index], nil
}

// SetHideAmbiguousInlineFrameCount marks the top count inline frames as
// hidden for display. Indices and fingerprints always address the full
// expanded list.
func (s *Stack) SetHideAmbiguousInlineFrameCount(count int) error {
	if count < 0 || count > len(s.frames) {
		return fmt.Errorf("hide count %d out of range", count)
	}
	for i := 0; i < count; i++ {
		if !s.frames[i].IsInline {
			return fmt.Errorf("frame %d is not inline; only top-of-stack inline frames can be ambiguous", i)
		}
	}
	s.hideAmbiguousInlineCount = count
	return nil
}

func (s *Stack) HideAmbiguousInlineFrameCount() int { return s.hideAmbiguousInlineCount }

// FirstVisibleIndex is where display iteration starts.
func (s *Stack) FirstVisibleIndex() int { return s.hideAmbiguousInlineCount }

// physicalIndexFor finds the physical frame containing the frame at
// index: the first non-inline frame at or below it.
func (s *Stack) physicalIndexFor(index int) (int, error) {
	for i := index; i < len(s.frames); i++ {
		if !s.frames[i].IsInline {
			return i, nil
		}
	}
	return 0, fmt.Errorf("frame %d has no physical frame below it", index)
}

// FingerprintForIndex computes the fingerprint of the frame at index in
// the full expanded list.
func (s *Stack) FingerprintForIndex(index int) (Fingerprint, error) {
	if index < 0 || index >= len(s.frames) {
		return Fingerprint{}, fmt.Errorf("frame index %d out of range (stack has %d)", index, len(s.frames))
	}
	phys, err := s.physicalIndexFor(index)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{CFA: s.frames[phys].CFA, InlineDepth: phys - index}, nil
}

// IndexForFrame locates a fingerprint in this stack. The search walks
// physical frames top-down; the first CFA match wins, and the inline
// depth must actually exist above that physical frame.
func (s *Stack) IndexForFrame(fp Fingerprint) (int, bool) {
	for i := range s.frames {
		if s.frames[i].IsInline || s.frames[i].CFA != fp.CFA {
			continue
		}
		index := i - fp.InlineDepth
		if index < 0 {
			return 0, false
		}
		// Every frame between index and the physical frame must be one
		// of its inline expansions.
		for j := index; j < i; j++ {
			if !s.frames[j].IsInline {
				return 0, false
			}
		}
		return index, true
	}
	return 0, false
}
