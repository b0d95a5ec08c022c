package capabilities

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "capabilities.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write capabilities doc: %v", err)
	}
	return path
}

func TestRequireForTransform(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "complete document passes",
			doc: `{
				"embedding": {"available": true, "max_tokens": 8192, "max_chars": 32768, "dimension": 768},
				"vllm": {"available": true, "model_id": "Qwen3-8B-AWQ", "max_model_len": 32768},
				"spacy_api": {"available": true},
				"fasttext_langdetect": {"available": true},
				"classify_body_max_chars": 6000
			}`,
			wantErr: false,
		},
		{
			name:    "empty document fails with every field listed",
			doc:     `{}`,
			wantErr: true,
		},
		{
			name: "wrong embedding dimension fails",
			doc: `{
				"embedding": {"available": true, "max_tokens": 8192, "dimension": 384},
				"vllm": {"available": true, "model_id": "m", "max_model_len": 1000},
				"spacy_api": {"available": true},
				"fasttext_langdetect": {"available": true}
			}`,
			wantErr: true,
		},
		{
			name: "missing vllm model id fails",
			doc: `{
				"embedding": {"available": true, "max_tokens": 8192},
				"vllm": {"available": true, "max_model_len": 1000},
				"spacy_api": {"available": true},
				"fasttext_langdetect": {"available": true}
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Load(writeDoc(t, tt.doc))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = reg.RequireForTransform()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireForTransform() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultsUsedOnlyWhenUnset(t *testing.T) {
	reg, err := Load(writeDoc(t, `{"embedding": {"max_tokens": 4096}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reg.EmbedMaxTokens(); got != 4096 {
		t.Errorf("EmbedMaxTokens() = %d, want 4096", got)
	}
	if got := reg.EmbedMaxChars(); got != DefaultEmbedMaxChars {
		t.Errorf("EmbedMaxChars() = %d, want default %d", got, DefaultEmbedMaxChars)
	}
	if got := reg.ClassifyMaxChars(); got != DefaultClassifyMaxChars {
		t.Errorf("ClassifyMaxChars() = %d, want default %d", got, DefaultClassifyMaxChars)
	}
}
