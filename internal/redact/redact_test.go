package redact

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubRenderer struct {
	got  string
	png  []byte
	fail error
}

func (s *stubRenderer) RenderPreview(_ context.Context, redactedText string) ([]byte, error) {
	s.got = redactedText
	return s.png, s.fail
}

func TestRedactMasksNINumber(t *testing.T) {
	res, err := Redact(context.Background(), "NI Number: AB123456C\nNet Pay 1400.00", nil)
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if strings.Contains(res.RedactedText, "AB123456C") {
		t.Fatalf("NI number survived redaction: %q", res.RedactedText)
	}
	if !strings.Contains(res.RedactedText, strings.Repeat("█", len("AB123456C"))) {
		t.Fatalf("expected a mask run of equal length: %q", res.RedactedText)
	}
	if !strings.Contains(res.RedactedText, "Net Pay 1400.00") {
		t.Fatalf("non-sensitive text must survive: %q", res.RedactedText)
	}
	if len(res.Boxes) != 1 {
		t.Fatalf("boxes = %d, want 1", len(res.Boxes))
	}
	if res.Boxes[0].Label != "ni" {
		t.Fatalf("label = %q, want ni", res.Boxes[0].Label)
	}
}

func TestRedactMultipleIdentifiers(t *testing.T) {
	text := "PPS 1234567T\nIBAN GB29NWBK60161331926819\nDOB 01/02/1990\nPostcode SW1A 1AA"
	res, err := Redact(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	for _, token := range []string{"1234567T", "GB29NWBK60161331926819", "01/02/1990", "SW1A 1AA"} {
		if strings.Contains(res.RedactedText, token) {
			t.Fatalf("%q survived redaction", token)
		}
	}
	if len(res.Boxes) < 4 {
		t.Fatalf("boxes = %d, want at least 4", len(res.Boxes))
	}
	for _, b := range res.Boxes {
		if b.X < 0 || b.X > 100 || b.Y < 0 || b.Y > 100 {
			t.Fatalf("box outside percent scale: %+v", b)
		}
	}
}

func TestRedactPassesRedactedTextToRenderer(t *testing.T) {
	r := &stubRenderer{png: []byte("png-bytes")}
	res, err := Redact(context.Background(), "NI Number AB123456C", r)
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if strings.Contains(r.got, "AB123456C") {
		t.Fatal("renderer must only ever see redacted text")
	}
	if string(res.PreviewPNG) != "png-bytes" {
		t.Fatalf("PreviewPNG = %q", res.PreviewPNG)
	}
}

func TestRedactRendererFailureKeepsTextOutcome(t *testing.T) {
	r := &stubRenderer{fail: errors.New("render broke")}
	res, err := Redact(context.Background(), "NI Number AB123456C", r)
	if err == nil {
		t.Fatal("expected renderer error to surface")
	}
	if strings.Contains(res.RedactedText, "AB123456C") {
		t.Fatalf("text redaction must survive a renderer failure: %q", res.RedactedText)
	}
	if len(res.Boxes) == 0 {
		t.Fatal("boxes must survive a renderer failure")
	}
	if res.PreviewPNG != nil {
		t.Fatalf("PreviewPNG = %q, want none", res.PreviewPNG)
	}
}

func TestNormalizeBox(t *testing.T) {
	b := NormalizeBox(Box{X: 0.05, Y: 0.1, W: 0.9, H: 0.06})
	if b.X != 5 || b.Y != 10 || b.W != 90 || b.H != 6 {
		t.Fatalf("fractional box not scaled to percent: %+v", b)
	}

	b = NormalizeBox(Box{X: 5, Y: 110, W: 90, H: -3})
	if b.Y != 100 {
		t.Fatalf("Y = %v, want clamped to 100", b.Y)
	}
	if b.H != 0 {
		t.Fatalf("H = %v, want clamped to 0", b.H)
	}
	if b.X != 5 || b.W != 90 {
		t.Fatalf("in-range percent values must pass through: %+v", b)
	}
}
