package preprocess

import "testing"

func TestStripTrackingURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tracking redirect is replaced",
			in:   "Click here: https://mail.example.com/track/open?id=1 to confirm",
			want: "Click here: [LINK] to confirm",
		},
		{
			name: "plain link is untouched",
			in:   "See https://example.com/docs/guide for details",
			want: "See https://example.com/docs/guide for details",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTrackingURLs(tt.in); got != tt.want {
				t.Errorf("StripTrackingURLs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripInvisibleUnicode(t *testing.T) {
	in := "Hello​World﻿!"
	want := "HelloWorld!"
	if got := StripInvisibleUnicode(in); got != want {
		t.Errorf("StripInvisibleUnicode(%q) = %q, want %q", in, got, want)
	}
}

func TestStripSignaturesAndDisclaimers(t *testing.T) {
	body := "Let's meet tomorrow.\n\nSent from my iPhone\nDon't judge typos"
	want := "Let's meet tomorrow."
	if got := StripSignaturesAndDisclaimers(body); got != want {
		t.Errorf("StripSignaturesAndDisclaimers() = %q, want %q", got, want)
	}
}

func TestStripQuotedReplies(t *testing.T) {
	body := "Sounds good to me.\n\nOn Mon, Jan 5, 2026 at 3:00 PM John Doe wrote:\n> original message"
	want := "Sounds good to me."
	if got := StripQuotedReplies(body); got != want {
		t.Errorf("StripQuotedReplies() = %q, want %q", got, want)
	}
}

func TestForEmbeddingAppliesAllStages(t *testing.T) {
	body := "Important update​.\n\nOn Tue wrote:\n> quoted\n\n--\nJane Smith"
	got := ForEmbedding(body, DefaultOptions())
	if got != "Important update." {
		t.Errorf("ForEmbedding() = %q, want %q", got, "Important update.")
	}
}

func TestForEmbeddingEmptyBody(t *testing.T) {
	if got := ForEmbedding("   ", DefaultOptions()); got != "" {
		t.Errorf("ForEmbedding(blank) = %q, want empty", got)
	}
}
