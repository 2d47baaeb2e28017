package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/caremesh/core"
)

// RenderText flattens a message into provider-ready text: text parts verbatim,
// structured data parts JSON-serialized. Context-injection messages carry only
// a data part, so this is how patient records reach the model.
func RenderText(msg core.Message) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case core.TextPart:
			b.WriteString(part.Text)
		case core.DataPart:
			raw, err := json.Marshal(part.Data)
			if err != nil {
				b.WriteString(fmt.Sprintf("%v", part.Data))
				continue
			}
			b.Write(raw)
		}
	}
	return b.String()
}

// RenderToolResult serializes a function response for the provider. Failures
// are rendered as an error payload so the model can self-correct.
func RenderToolResult(fr core.FunctionResponse) string {
	if fr.Error != "" {
		raw, _ := json.Marshal(map[string]any{"error": fr.Error})
		return string(raw)
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	raw, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(raw)
}
