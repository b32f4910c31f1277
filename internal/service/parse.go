package service

import (
	"encoding/json"
	"strings"

	"github.com/affordd/affordd-go/internal/domain"
)

// parseVerdict parses the advisor's raw text against the fixed verdict
// contract. The whole text is tried first; if that fails, exactly one
// bounded extraction pass pulls the first well-formed object substring
// (models tend to wrap the JSON in prose or code fences). Anything
// beyond that is rejected, never repaired.
func parseVerdict(raw string) (*domain.AdvisorVerdict, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "empty response"}
	}

	if v, err := decodeVerdict(text); err == nil {
		return v, nil
	}

	obj, ok := firstJSONObject(text)
	if !ok {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "no JSON object found in response"}
	}
	v, err := decodeVerdict(obj)
	if err != nil {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "extracted object does not match verdict contract: " + err.Error()}
	}
	return v, nil
}

// decodeVerdict strictly decodes one verdict object, rejecting unknown
// fields and trailing content.
func decodeVerdict(text string) (*domain.AdvisorVerdict, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var v domain.AdvisorVerdict
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "trailing content after verdict object"}
	}
	return &v, nil
}

// firstJSONObject scans for the first balanced top-level {...} substring,
// tracking string and escape state so braces inside values don't count.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
