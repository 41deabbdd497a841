package llm

// ModelInfo describes one selectable reasoning model.
type ModelInfo struct {
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	MaxTokens        int    `json:"max_tokens"`
	SupportsThinking bool   `json:"supports_thinking"`
}

var modelCatalog = []ModelInfo{
	{Name: "google/gemini-2.5-pro", Provider: "google", MaxTokens: 8192},
	{Name: "openai/gpt-oss-20b:free", Provider: "openai", MaxTokens: 4096},
}

// AvailableModels returns the known model catalog.
func AvailableModels() []ModelInfo {
	models := make([]ModelInfo, len(modelCatalog))
	copy(models, modelCatalog)
	return models
}

// maxTokensFor returns the token ceiling for a model, falling back to a
// generous default for models outside the catalog.
func maxTokensFor(model string) int {
	for _, info := range modelCatalog {
		if info.Name == model {
			return info.MaxTokens
		}
	}
	return 8192
}
