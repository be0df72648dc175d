package ai

import "sort"

// ModelInfo is what the CLI and relay need to know about a chat model.
type ModelInfo struct {
	Name          string `json:"name"`
	ContextTokens int    `json:"context_tokens"` // approximate context window
}

// DefaultModel is the Groq model used when none is configured.
const DefaultModel = "deepseek-r1-distill-qwen-32b"

var models = map[string]ModelInfo{
	DefaultModel:              {Name: DefaultModel, ContextTokens: 128000},
	"llama-3.3-70b-versatile": {Name: "llama-3.3-70b-versatile", ContextTokens: 128000},
	"llama-3.1-8b-instant":    {Name: "llama-3.1-8b-instant", ContextTokens: 128000},
	"mixtral-8x7b-32768":      {Name: "mixtral-8x7b-32768", ContextTokens: 32768},
	"gemma2-9b-it":            {Name: "gemma2-9b-it", ContextTokens: 8192},
	"llama3:latest":           {Name: "llama3:latest", ContextTokens: 8192},
	"qwen2.5:7b-instruct":     {Name: "qwen2.5:7b-instruct", ContextTokens: 32768},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// FitsContext reports whether promptTokens plus the completion budget fits
// the model's window. Unknown models always fit.
func FitsContext(model string, promptTokens, maxTokens int) bool {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return true
	}
	return promptTokens+maxTokens <= mi.ContextTokens
}

// Models returns the known models sorted by name.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, mi := range models {
		out = append(out, mi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
