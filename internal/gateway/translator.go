package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/curanote/curanote/pkg/provider/llm"
)

// languageNames maps ISO 639-1 codes to the language name used in the
// translation prompt. Unknown codes fall back to the code itself.
var languageNames = map[string]string{
	"de": "German",
	"en": "English",
	"tr": "Turkish",
	"pl": "Polish",
	"ru": "Russian",
	"ro": "Romanian",
}

// LLMTranslator implements [Translator] on top of an [llm.Provider].
// Translation runs at temperature zero so repeated calls yield stable
// output.
type LLMTranslator struct {
	provider llm.Provider
}

var _ Translator = (*LLMTranslator)(nil)

// NewLLMTranslator returns a [Translator] backed by the given provider.
func NewLLMTranslator(provider llm.Provider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

// Translate converts text into targetLanguage, preserving medication names,
// dosages and numeric values verbatim.
func (t *LLMTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	name, ok := languageNames[strings.ToLower(targetLanguage)]
	if !ok {
		name = targetLanguage
	}

	resp, err := t.provider.Complete(ctx, llm.Request{
		SystemPrompt: "You translate transcribed nursing notes into " + name + ". " +
			"Keep medication names, dosages and all numeric values exactly as they are. " +
			"Reply with the translation only.",
		Prompt:      text,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: translate: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
