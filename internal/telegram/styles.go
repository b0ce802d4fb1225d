package telegram

import (
	"fmt"
	"sort"
	"strings"
)

// styleTemplate rewrites the user's text into a preset generation prompt.
type styleTemplate struct {
	Name     string
	TextOnly string
}

var styleTemplates = map[string]styleTemplate{
	"sticker": {
		Name:     "🏷️ Sticker",
		TextOnly: "Create a sticker with a black outline and vector artstyle. The background must be transparent. The subject is %s",
	},
	"watercolor": {
		Name:     "🎨 Watercolor",
		TextOnly: "A delicate watercolor painting with soft washes and visible paper texture. The subject is %s",
	},
	"pixel": {
		Name:     "👾 Pixel art",
		TextOnly: "Retro 16-bit pixel art with a limited palette. The subject is %s",
	},
}

func styleKeys() []string {
	keys := make([]string, 0, len(styleTemplates))
	for k := range styleTemplates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyStyle renders the template for the user's text. Unknown keys
// fall back to the raw text.
func applyStyle(key, text string) string {
	t, ok := styleTemplates[key]
	if !ok {
		return text
	}
	if strings.TrimSpace(text) == "" {
		text = "the provided image"
	}
	return fmt.Sprintf(t.TextOnly, text)
}
