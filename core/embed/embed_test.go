package embed

import (
	"context"
	"strings"
	"testing"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// fakeEmbedder is a word-counting tokenizer paired with an embedder that
// can be told to reject certain inputs with ErrPayloadTooLarge, to
// exercise the adaptive retry ladder without a real HTTP service.
type fakeEmbedder struct {
	rejectLonger int // reject any input with more runes than this, 0 disables
	calls        [][]string
}

func (f *fakeEmbedder) TokenCount(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(strings.Fields(text)), nil
}

func (f *fakeEmbedder) Tokenize(ctx context.Context, text string) ([]int, error) {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i := range words {
		ids[i] = i
	}
	return ids, nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.rejectLonger > 0 {
		for _, t := range texts {
			if len([]rune(t)) > f.rejectLonger {
				return nil, out.ErrPayloadTooLarge
			}
		}
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, 768)
		v[0] = float32(len(texts[i]))
		result[i] = v
	}
	return result, nil
}

func TestEncodeBatchReturnsVectorsInOrder(t *testing.T) {
	fe := &fakeEmbedder{}
	m := New(fe, 0, 0, 10)
	embs, err := m.EncodeBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if len(embs) != 3 {
		t.Fatalf("len(embs) = %d, want 3", len(embs))
	}
	for _, e := range embs {
		if len(e) != 768 {
			t.Errorf("embedding dim = %d, want 768", len(e))
		}
	}
}

func TestEncodeBatchSplitsAcrossSubBatches(t *testing.T) {
	fe := &fakeEmbedder{}
	m := New(fe, 0, 0, 2)
	_, err := m.EncodeBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if len(fe.calls) != 3 {
		t.Errorf("sub-batch calls = %d, want 3 (2,2,1)", len(fe.calls))
	}
}

func TestEncodeBatchFallsBackElementByElementOn413(t *testing.T) {
	fe := &fakeEmbedder{rejectLonger: 256}
	m := New(fe, 0, 0, 10)
	// The 300-rune input exceeds 256 runes so the whole sub-batch 413s; the
	// manager should retry element by element ("ok" fits, the long one is
	// halved once) rather than fail outright.
	embs, err := m.EncodeBatch(context.Background(), []string{"ok", strings.Repeat("x", 300)})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("len(embs) = %d, want 2", len(embs))
	}
}

func TestEncodeBatchHalvesOversizedSingleElement(t *testing.T) {
	long := strings.Repeat("x", 300)
	fe := &fakeEmbedder{rejectLonger: 299}
	m := New(fe, 0, 0, 1)
	embs, err := m.EncodeBatch(context.Background(), []string{long})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if len(embs) != 1 {
		t.Fatalf("len(embs) = %d, want 1", len(embs))
	}
}

func TestEncodeBatchGivesUpOnShortOversizedElement(t *testing.T) {
	fe := &fakeEmbedder{rejectLonger: 1}
	m := New(fe, 0, 0, 1)
	_, err := m.EncodeBatch(context.Background(), []string{"ab"})
	if err == nil {
		t.Fatal("expected error for an oversized input too short to halve")
	}
}

func TestEncodeBatchTruncatesToMaxChars(t *testing.T) {
	fe := &fakeEmbedder{}
	m := New(fe, 5, 0, 10)
	_, err := m.EncodeBatch(context.Background(), []string{"0123456789"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if len(fe.calls) != 1 || fe.calls[0][0] != "01234" {
		t.Errorf("prepared text = %q, want %q", fe.calls[0][0], "01234")
	}
}

func TestEncodeBatchTruncatesToMaxTokens(t *testing.T) {
	fe := &fakeEmbedder{}
	m := New(fe, 0, 3, 10)
	text := "one two three four five six"
	_, err := m.EncodeBatch(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	got := fe.calls[0][0]
	n, _ := fe.TokenCount(context.Background(), got)
	if n > 3 {
		t.Errorf("prepared text %q has %d tokens, want <= 3", got, n)
	}
}

func TestEncodeBatchEmptyInput(t *testing.T) {
	fe := &fakeEmbedder{}
	m := New(fe, 0, 0, 10)
	embs, err := m.EncodeBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if embs != nil {
		t.Errorf("EncodeBatch(nil) = %v, want nil", embs)
	}
}

func TestEncodeBatchRejectsWrongDimension(t *testing.T) {
	fe := &badDimEmbedder{}
	m := New(fe, 0, 0, 10)
	_, err := m.EncodeBatch(context.Background(), []string{"hi"})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

type badDimEmbedder struct{}

func (badDimEmbedder) TokenCount(ctx context.Context, text string) (int, error) { return 1, nil }
func (badDimEmbedder) Tokenize(ctx context.Context, text string) ([]int, error) { return nil, nil }
func (badDimEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = make([]float32, 10)
	}
	return result, nil
}
