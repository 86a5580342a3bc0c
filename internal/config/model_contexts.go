package config

import (
	_ "embed"
	"encoding/json"
	"log"
	"strings"
	"sync"
)

//go:embed model-contexts.json
var modelContextsJSON []byte

// DefaultContextLength is assumed for models missing from the embedded table.
const DefaultContextLength = 8192

var (
	modelContexts     map[string]int
	modelContextsOnce sync.Once
)

func loadModelContexts() {
	modelContextsOnce.Do(func() {
		modelContexts = make(map[string]int)
		if err := json.Unmarshal(modelContextsJSON, &modelContexts); err != nil {
			log.Printf("Warning: failed to parse model contexts: %v", err)
		}
	})
}

func modelKey(provider, model string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.ToLower(strings.TrimSpace(model))
}

// GetModelContextLength returns the context window, in tokens, of provider/model.
// Unknown models get DefaultContextLength.
func GetModelContextLength(provider, model string) int {
	loadModelContexts()
	if n, ok := modelContexts[modelKey(provider, model)]; ok && n > 0 {
		return n
	}
	return DefaultContextLength
}

// KnownModel reports whether provider/model is in the embedded table.
func KnownModel(provider, model string) bool {
	loadModelContexts()
	_, ok := modelContexts[modelKey(provider, model)]
	return ok
}
