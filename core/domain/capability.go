package domain

// CapabilityDocument is the decoded shape of the on-disk capability probe
// (capabilities.json), produced by a separate probe tool this repo does
// not implement (see SPEC_FULL.md §1). The transform pipeline only reads
// it, and only through core/capabilities, which enforces the stricter
// transform-path requirements on top of this permissive struct.
type CapabilityDocument struct {
	Embedding struct {
		Available bool `json:"available"`
		MaxTokens int  `json:"max_tokens"`
		MaxChars  int  `json:"max_chars"`
		Dimension int  `json:"dimension"`
	} `json:"embedding"`

	VLLM struct {
		Available   bool   `json:"available"`
		ModelID     string `json:"model_id"`
		MaxModelLen int    `json:"max_model_len"`
	} `json:"vllm"`

	SpacyAPI struct {
		Available bool `json:"available"`
	} `json:"spacy_api"`

	FasttextLangdetect struct {
		Available bool `json:"available"`
	} `json:"fasttext_langdetect"`

	ClassifyBodyMaxChars int `json:"classify_body_max_chars"`
}
