package ocr

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jo-hoe/platewatch/internal/plate"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t200\t50\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t5\t5\t190\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t5\t5\t80\t40\t90.5\tKA03\n" +
	"5\t1\t1\t1\t1\t2\t90\t5\t100\t40\t80.5\tMG9267\n" +
	"5\t1\t1\t1\t2\t1\t5\t45\t30\t10\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t5\t60\t30\t10\t40\tXY\n"

func TestParseTSV(t *testing.T) {
	hypotheses, err := parseTSV([]byte(sampleTSV))
	if err != nil {
		t.Fatalf("parseTSV failed: %v", err)
	}
	if len(hypotheses) != 2 {
		t.Fatalf("expected 2 lines, got %+v", hypotheses)
	}
	if hypotheses[0].Text != "KA03 MG9267" || hypotheses[0].Confidence != 0.855 {
		t.Errorf("unexpected first hypothesis %+v", hypotheses[0])
	}
	if hypotheses[1].Text != "XY" || hypotheses[1].Confidence != 0.4 {
		t.Errorf("unexpected second hypothesis %+v", hypotheses[1])
	}
}

func TestParseTSV_MissingColumns(t *testing.T) {
	if _, err := parseTSV([]byte("level\ttext\n5\tABC\n")); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestTesseractEngine_Recognize(t *testing.T) {
	engine := NewTesseractEngine("", 0)
	var gotName string
	var gotArgs []string
	engine.run = func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
		gotName, gotArgs = name, args
		if _, err := png.Decode(strings.NewReader(string(stdin))); err != nil {
			t.Errorf("stdin is not a PNG: %v", err)
		}
		return []byte(sampleTSV), nil
	}

	hypotheses, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 10, 4)))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(hypotheses) != 2 {
		t.Errorf("expected 2 hypotheses, got %d", len(hypotheses))
	}
	if gotName != "tesseract" {
		t.Errorf("expected default binary, got %s", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--psm 7", "--oem 3", "tessedit_char_whitelist=" + plateCharset, "tsv"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestTesseractEngine_RunnerError(t *testing.T) {
	engine := NewTesseractEngine("/opt/tesseract", 0)
	engine.run = func(context.Context, string, []string, []byte) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2))); err == nil {
		t.Error("expected runner error")
	}
}

func TestHTTPEngine_Recognize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image field: %v", err)
		} else {
			defer file.Close()
			if _, err := png.Decode(file); err != nil {
				t.Errorf("uploaded image is not a PNG: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"plate":"KA03MG9267","confidence":91.5,"candidates":[{"plate":"KA03MG9261","confidence":70}]}]}`))
	}))
	defer server.Close()

	engine, err := NewHTTPEngine(server.URL, 0)
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	hypotheses, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 4)))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	want := []plate.Hypothesis{{Text: "KA03MG9267", Confidence: 0.915}, {Text: "KA03MG9261", Confidence: 0.7}}
	if len(hypotheses) != len(want) {
		t.Fatalf("expected %d hypotheses, got %+v", len(want), hypotheses)
	}
	for i := range want {
		if hypotheses[i] != want[i] {
			t.Errorf("hypothesis %d = %+v, want %+v", i, hypotheses[i], want[i])
		}
	}
}

func TestHTTPEngine_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	engine, err := NewHTTPEngine(server.URL, 0)
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	if _, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2))); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestNewEngine(t *testing.T) {
	if e, err := NewEngine(EngineConfig{}); err != nil {
		t.Errorf("default engine failed: %v", err)
	} else if _, ok := e.(*TesseractEngine); !ok {
		t.Errorf("expected tesseract engine by default, got %T", e)
	}
	if _, err := NewEngine(EngineConfig{Type: EngineHTTP}); err == nil {
		t.Error("expected error for http engine without url")
	}
	if _, err := NewEngine(EngineConfig{Type: "neural"}); err == nil {
		t.Error("expected error for unknown engine")
	}
}
