package langdetect

import (
	"context"
	"testing"
)

type fakeClient struct {
	label      string
	confidence float64
}

func (f *fakeClient) Detect(ctx context.Context, text string) (string, float64, error) {
	return f.label, f.confidence, nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		label      string
		confidence float64
		want       string
	}{
		{"blank text is english", "   ", "", 0, "en"},
		{"high confidence spanish", "hola como estas", "es", 0.9, "es"},
		{"low confidence falls back to english", "xyz", "fr", 0.2, "en"},
		{"regional variant keeps base language", "bonjour", "fr_FR", 0.8, "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeClient{label: tt.label, confidence: tt.confidence})
			got, err := d.Detect(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}
