package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/platewatch/internal/plate"
)

const (
	defaultTesseractBinary  = "tesseract"
	defaultTesseractTimeout = 10 * time.Second
	plateCharset            = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// commandRunner executes a binary with stdin and returns its stdout
type commandRunner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// TesseractEngine runs the tesseract CLI in single-line mode restricted to plate characters
type TesseractEngine struct {
	binary  string
	timeout time.Duration
	run     commandRunner
}

// NewTesseractEngine creates an engine around the tesseract binary
func NewTesseractEngine(binary string, timeout time.Duration) *TesseractEngine {
	if binary == "" {
		binary = defaultTesseractBinary
	}
	if timeout <= 0 {
		timeout = defaultTesseractTimeout
	}
	return &TesseractEngine{binary: binary, timeout: timeout, run: execRunner}
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (t *TesseractEngine) args() []string {
	return []string{
		"stdin", "stdout",
		"--oem", "3",
		"--psm", "7",
		"-c", "tessedit_char_whitelist=" + plateCharset,
		"tsv",
	}
}

// Recognize returns one hypothesis per recognized text line
func (t *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]plate.Hypothesis, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image for tesseract: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.run(ctx, t.binary, t.args(), buf.Bytes())
	if err != nil {
		return nil, err
	}

	hypotheses, err := parseTSV(out)
	if err != nil {
		return nil, fmt.Errorf("parse tesseract output: %w", err)
	}
	slog.Debug("tesseract finished", "lines", len(hypotheses))
	return hypotheses, nil
}

type tsvLine struct {
	words []string
	conf  float64
}

// parseTSV groups word rows (level 5) by block, paragraph and line. Each line becomes
// a hypothesis whose confidence is the mean word confidence scaled to [0,1].
func parseTSV(data []byte) ([]plate.Hypothesis, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	columns := map[string]int{}
	lines := map[string]*tsvLine{}
	var order []string

	header := true
	for scanner.Scan() {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if header {
			for i, name := range fields {
				columns[name] = i
			}
			for _, required := range []string{"level", "block_num", "par_num", "line_num", "conf", "text"} {
				if _, ok := columns[required]; !ok {
					return nil, fmt.Errorf("missing column %q", required)
				}
			}
			header = false
			continue
		}
		if len(fields) <= columns["text"] || fields[columns["level"]] != "5" {
			continue
		}

		text := strings.TrimSpace(fields[columns["text"]])
		conf, err := strconv.ParseFloat(fields[columns["conf"]], 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}

		key := fields[columns["block_num"]] + "/" + fields[columns["par_num"]] + "/" + fields[columns["line_num"]]
		line, ok := lines[key]
		if !ok {
			line = &tsvLine{}
			lines[key] = line
			order = append(order, key)
		}
		line.words = append(line.words, text)
		line.conf += conf
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	hypotheses := make([]plate.Hypothesis, 0, len(order))
	for _, key := range order {
		line := lines[key]
		hypotheses = append(hypotheses, plate.Hypothesis{
			Text:       strings.Join(line.words, " "),
			Confidence: line.conf / float64(len(line.words)) / 100,
		})
	}
	return hypotheses, nil
}
