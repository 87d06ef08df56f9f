package stack

import "testing"

// testFrames is an expanded stack: two inline frames above the top
// physical frame, then a middle frame with one inline expansion, then
// two plain physical frames.
func testFrames() []Frame {
	return []Frame{
		{CFA: 0x1000, IsInline: true, Function: "inl2"},
		{CFA: 0x1000, IsInline: true, Function: "inl1"},
		{CFA: 0x1000, Function: "top"},
		{CFA: 0x2000, IsInline: true, Function: "mid_inl"},
		{CFA: 0x2000, Function: "mid"},
		{CFA: 0x3000, Function: "main"},
	}
}

func TestFingerprintForIndex(t *testing.T) {
	s := NewStack(testFrames())

	cases := []struct {
		index int
		want  Fingerprint
	}{
		{0, Fingerprint{CFA: 0x1000, InlineDepth: 2}},
		{1, Fingerprint{CFA: 0x1000, InlineDepth: 1}},
		{2, Fingerprint{CFA: 0x1000, InlineDepth: 0}},
		{3, Fingerprint{CFA: 0x2000, InlineDepth: 1}},
		{4, Fingerprint{CFA: 0x2000, InlineDepth: 0}},
		{5, Fingerprint{CFA: 0x3000, InlineDepth: 0}},
	}
	for _, tc := range cases {
		fp, err := s.FingerprintForIndex(tc.index)
		if err != nil {
			t.Fatalf("index %d: %s", tc.index, err)
		}
		if fp != tc.want {
			t.Errorf("index %d: expected %s, got %s", tc.index, tc.want, fp)
		}
	}

	if _, err := s.FingerprintForIndex(6); err == nil {
		t.Error("out-of-range index must fail")
	}
	if _, err := s.FingerprintForIndex(-1); err == nil {
		t.Error("negative index must fail")
	}
}

func TestRoundTrip(t *testing.T) {
	s := NewStack(testFrames())
	for i := 0; i < s.Size(); i++ {
		fp, err := s.FingerprintForIndex(i)
		if err != nil {
			t.Fatal(err)
		}
		back, ok := s.IndexForFrame(fp)
		if !ok || back != i {
			t.Errorf("index %d: round trip gave %d (ok=%v)", i, back, ok)
		}
	}
}

// A fingerprint taken before a re-unwind finds the same logical frame
// after, even when the top of the stack changed shape.
func TestFingerprintSurvivesReunwind(t *testing.T) {
	before := NewStack(testFrames())
	fp, err := before.FingerprintForIndex(4) // "mid"
	if err != nil {
		t.Fatal(err)
	}

	// After stepping, the program is somewhere else: new top frames, but
	// mid and main keep their CFAs. mid's inline expansion is gone.
	after := NewStack([]Frame{
		{CFA: 0x0800, Function: "other"},
		{CFA: 0x2000, Function: "mid"},
		{CFA: 0x3000, Function: "main"},
	})
	index, ok := after.IndexForFrame(fp)
	if !ok || index != 1 {
		t.Fatalf("expected index 1, got %d (ok=%v)", index, ok)
	}
}

func TestIndexForFrameMisses(t *testing.T) {
	s := NewStack(testFrames())

	// Unknown CFA.
	if _, ok := s.IndexForFrame(Fingerprint{CFA: 0x9999}); ok {
		t.Error("unknown CFA must not match")
	}
	// Inline depth deeper than the expansion above the physical frame.
	if _, ok := s.IndexForFrame(Fingerprint{CFA: 0x3000, InlineDepth: 1}); ok {
		t.Error("depth 1 above main does not exist")
	}
	if _, ok := s.IndexForFrame(Fingerprint{CFA: 0x1000, InlineDepth: 3}); ok {
		t.Error("depth 3 runs off the top")
	}
}

func TestHideAmbiguousInlineFrames(t *testing.T) {
	s := NewStack(testFrames())

	if err := s.SetHideAmbiguousInlineFrameCount(2); err != nil {
		t.Fatal(err)
	}
	if s.FirstVisibleIndex() != 2 {
		t.Fatalf("first visible: got %d", s.FirstVisibleIndex())
	}

	// Hiding is display-only: indices and fingerprints still address the
	// full expanded list.
	fp, err := s.FingerprintForIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if fp.InlineDepth != 2 {
		t.Fatalf("hidden frame fingerprint: got %s", fp)
	}
	if index, ok := s.IndexForFrame(fp); !ok || index != 0 {
		t.Fatalf("hidden frame lookup: got %d (ok=%v)", index, ok)
	}

	// Frame 2 is physical; it can never be marked ambiguous.
	if err := s.SetHideAmbiguousInlineFrameCount(3); err == nil {
		t.Error("hiding a physical frame must fail")
	}
	if err := s.SetHideAmbiguousInlineFrameCount(-1); err == nil {
		t.Error("negative count must fail")
	}
	if err := s.SetHideAmbiguousInlineFrameCount(7); err == nil {
		t.Error("count past the stack must fail")
	}
}

func TestPartialUnwindZeroCFA(t *testing.T) {
	// A partial unwind's bottom frame can carry CFA 0; fingerprints for
	// it still round trip within the same stack.
	s := NewStack([]Frame{
		{CFA: 0x1000, Function: "top"},
		{CFA: 0, Function: "truncated"},
	})
	fp, err := s.FingerprintForIndex(1)
	if err != nil {
		t.Fatal(err)
	}
	index, ok := s.IndexForFrame(fp)
	if !ok || index != 1 {
		t.Fatalf("got %d (ok=%v)", index, ok)
	}
}

func TestFrameAt(t *testing.T) {
	s := NewStack(testFrames())
	f, err := s.FrameAt(2)
	if err != nil || f.Function != "top" {
		t.Fatalf("got %v, %v", f, err)
	}
	if _, err := s.FrameAt(6); err == nil {
		t.Error("out of range")
	}
}
