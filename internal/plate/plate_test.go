package plate

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hr-26 dk 8337!", "HR26DK8337"},
		{"KA03MG9267", "KA03MG9267"},
		{"  ka 5 gp 8497 ", "KA5GP8497"},
		{"--", ""},
		{"ÄB12", "B12"},
	}
	for _, tt := range tests {
		got := Normalize(tt.in)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize is not idempotent for %q: %q", tt.in, again)
		}
	}
}

func TestRectArea(t *testing.T) {
	if got := (Rect{X1: 0, Y1: 0, X2: 10, Y2: 4}).Area(); got != 40 {
		t.Errorf("expected area 40, got %d", got)
	}
	if got := (Rect{X1: 5, Y1: 5, X2: 5, Y2: 9}).Area(); got != 0 {
		t.Errorf("expected degenerate area 0, got %d", got)
	}
}

func TestSelectCandidate(t *testing.T) {
	small := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
	large := Rect{X1: 50, Y1: 50, X2: 70, Y2: 70}
	sameArea := Rect{X1: 100, Y1: 100, X2: 120, Y2: 120}

	tests := []struct {
		name       string
		candidates []Rect
		policy     TieBreak
		want       Rect
		wantOK     bool
	}{
		{"empty", nil, TieBreakLargest, Rect{}, false},
		{"largest wins", []Rect{small, large}, TieBreakLargest, large, true},
		{"first on equal area", []Rect{large, sameArea}, TieBreakLargest, large, true},
		{"first policy", []Rect{small, large}, TieBreakFirst, small, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectCandidate(tt.candidates, tt.policy)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SelectCandidate() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseTieBreak(t *testing.T) {
	for in, want := range map[string]TieBreak{"": TieBreakLargest, "Largest": TieBreakLargest, "first": TieBreakFirst} {
		got, err := ParseTieBreak(in)
		if err != nil || got != want {
			t.Errorf("ParseTieBreak(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTieBreak("random"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPad(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	got := Pad(Rect{X1: 2, Y1: 10, X2: 40, Y2: 48}, 5, bounds)
	want := Rect{X1: 0, Y1: 5, X2: 45, Y2: 50}
	if got != want {
		t.Errorf("Pad() = %v, want %v", got, want)
	}
}

type fakeDetector struct {
	rects []Rect
	err   error
	got   *image.Gray
}

func (f *fakeDetector) Detect(img *image.Gray) ([]Rect, error) {
	f.got = img
	return f.rects, f.err
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestLocalizer_LargestCandidateIsPaddedAndCropped(t *testing.T) {
	detector := &fakeDetector{rects: []Rect{
		{X1: 10, Y1: 10, X2: 20, Y2: 20},
		{X1: 40, Y1: 30, X2: 60, Y2: 50},
	}}
	localizer, err := NewLocalizer(detector)
	if err != nil {
		t.Fatalf("NewLocalizer failed: %v", err)
	}

	region, err := localizer.Locate(uniformGray(100, 60, 128))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	want := Rect{X1: 35, Y1: 25, X2: 65, Y2: 55}
	if region.Box != want {
		t.Errorf("expected box %v, got %v", want, region.Box)
	}
	if region.Image.Bounds().Dx() != 30 || region.Image.Bounds().Dy() != 30 {
		t.Errorf("expected 30x30 crop, got %v", region.Image.Bounds())
	}
	if detector.got == nil {
		t.Fatal("detector was not called")
	}
}

func TestLocalizer_FirstPolicyAndClamping(t *testing.T) {
	detector := &fakeDetector{rects: []Rect{
		{X1: 0, Y1: 0, X2: 10, Y2: 10},
		{X1: 40, Y1: 30, X2: 60, Y2: 50},
	}}
	localizer, err := NewLocalizer(detector, WithTieBreak(TieBreakFirst))
	if err != nil {
		t.Fatalf("NewLocalizer failed: %v", err)
	}

	region, err := localizer.Locate(uniformGray(100, 60, 128))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	want := Rect{X1: 0, Y1: 0, X2: 15, Y2: 15}
	if region.Box != want {
		t.Errorf("expected clamped box %v, got %v", want, region.Box)
	}
}

func TestLocalizer_NoCandidates(t *testing.T) {
	localizer, err := NewLocalizer(&fakeDetector{})
	if err != nil {
		t.Fatalf("NewLocalizer failed: %v", err)
	}
	if _, err := localizer.Locate(uniformGray(50, 50, 0)); !errors.Is(err, ErrNoPlateDetected) {
		t.Errorf("expected ErrNoPlateDetected, got %v", err)
	}
}

func TestLocalizer_DetectorError(t *testing.T) {
	localizer, err := NewLocalizer(&fakeDetector{err: errors.New("boom")})
	if err != nil {
		t.Fatalf("NewLocalizer failed: %v", err)
	}
	_, err = localizer.Locate(uniformGray(50, 50, 0))
	if err == nil || errors.Is(err, ErrNoPlateDetected) {
		t.Errorf("expected detector failure, got %v", err)
	}
}

type fakeEngine struct {
	hypotheses []Hypothesis
	err        error
	panicWith  any
	calls      int
}

func (f *fakeEngine) Recognize(_ context.Context, img image.Image) ([]Hypothesis, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.hypotheses, f.err
}

func testRegion() Region {
	img := uniformGray(40, 12, 220)
	for y := 3; y < 9; y++ {
		for x := 5; x < 35; x += 6 {
			img.SetGray(x, y, color.Gray{Y: 10})
		}
	}
	return Region{Box: Rect{X1: 0, Y1: 0, X2: 40, Y2: 12}, Image: img}
}

func TestReader_Read(t *testing.T) {
	tests := []struct {
		name    string
		engine  *fakeEngine
		want    Recognized
		wantErr error
	}{
		{
			name:   "highest confidence wins",
			engine: &fakeEngine{hypotheses: []Hypothesis{{"ka03 mg", 0.4}, {"ka-03-mg-9267", 0.9}}},
			want:   Recognized{Text: "KA03MG9267", Confidence: 0.9},
		},
		{
			name:   "first wins on equal confidence",
			engine: &fakeEngine{hypotheses: []Hypothesis{{"HR26DK8337", 0.8}, {"HR26DK8331", 0.8}}},
			want:   Recognized{Text: "HR26DK8337", Confidence: 0.8},
		},
		{
			name:    "too short",
			engine:  &fakeEngine{hypotheses: []Hypothesis{{"KA5", 0.99}}},
			wantErr: ErrTooShort,
		},
		{
			name:    "no hypotheses",
			engine:  &fakeEngine{},
			wantErr: ErrNoText,
		},
		{
			name:    "only punctuation",
			engine:  &fakeEngine{hypotheses: []Hypothesis{{"-- .", 0.7}}},
			wantErr: ErrNoText,
		},
		{
			name:    "engine error",
			engine:  &fakeEngine{err: errors.New("engine unavailable")},
			wantErr: ErrEngineFailure,
		},
		{
			name:    "engine panic",
			engine:  &fakeEngine{panicWith: "segfault"},
			wantErr: ErrEngineFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewReader(tt.engine)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			got, err := reader.Read(context.Background(), testRegion())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Read() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type sizeEngine struct {
	bounds image.Rectangle
}

func (s *sizeEngine) Recognize(_ context.Context, img image.Image) ([]Hypothesis, error) {
	s.bounds = img.Bounds()
	return []Hypothesis{{Text: "ABCD", Confidence: 1}}, nil
}

func TestReader_UpscalesBeforeRecognition(t *testing.T) {
	engine := &sizeEngine{}
	reader, err := NewReader(engine)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := reader.Read(context.Background(), testRegion()); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if engine.bounds.Dx() != 80 || engine.bounds.Dy() != 24 {
		t.Errorf("expected engine input 80x24, got %v", engine.bounds)
	}
}

func TestReader_EmptyRegion(t *testing.T) {
	engine := &fakeEngine{}
	reader, err := NewReader(engine, WithMinLength(6))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := reader.Read(context.Background(), Region{}); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
	if engine.calls != 0 {
		t.Errorf("expected engine not to be called, got %d calls", engine.calls)
	}
}

func TestReader_MinLengthOption(t *testing.T) {
	reader, err := NewReader(&fakeEngine{hypotheses: []Hypothesis{{"ABCDE", 0.5}}}, WithMinLength(6))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := reader.Read(context.Background(), testRegion()); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}
