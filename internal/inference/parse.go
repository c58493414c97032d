package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"mailpilot/internal/model"
)

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array in s.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON found", ErrMalformedOutput)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", fmt.Errorf("%w: unterminated JSON", ErrMalformedOutput)
	}
	return s[start : end+1], nil
}

func decode(raw string, dst any) error {
	body, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func parseClassification(raw string) (model.Classification, error) {
	var out struct {
		Intent    string `json:"intent"`
		Priority  string `json:"priority"`
		Reasoning string `json:"reasoning"`
	}
	if err := decode(raw, &out); err != nil {
		return model.Classification{}, err
	}
	intent, ok := model.ParseIntent(out.Intent)
	if !ok {
		return model.Classification{}, fmt.Errorf("%w: unknown intent %q", ErrMalformedOutput, out.Intent)
	}
	priority, ok := model.ParsePriority(out.Priority)
	if !ok {
		return model.Classification{}, fmt.Errorf("%w: unknown priority %q", ErrMalformedOutput, out.Priority)
	}
	return model.Classification{
		Intent:    intent,
		Priority:  priority,
		Reasoning: strings.TrimSpace(out.Reasoning),
	}, nil
}

func parseEntities(raw string) (model.Entities, error) {
	var out model.Entities
	if err := decode(raw, &out); err != nil {
		return model.Entities{}, err
	}
	return out.Normalize(), nil
}

func parseReplies(raw string) ([]model.ReplySuggestion, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	type reply struct {
		Text string `json:"text"`
		Tone string `json:"tone"`
	}
	var items []reply
	if strings.HasPrefix(body, "{") {
		// some models wrap the array: {"replies": [...]}
		var wrapped map[string][]reply
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		for _, v := range wrapped {
			items = v
			break
		}
	} else if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	out := make([]model.ReplySuggestion, 0, len(items))
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		tone, ok := model.ParseTone(it.Tone)
		if !ok {
			tone = model.ToneProfessional
		}
		out = append(out, model.ReplySuggestion{Text: text, Tone: tone})
	}
	return out, nil
}
