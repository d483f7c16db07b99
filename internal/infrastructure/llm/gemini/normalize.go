package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/schema"
)

// normalizeExtraction maps the model's JSON onto ExtractedFields. Empty or
// non-string scalars become absent; phone and email accept a scalar or a list;
// tags must be a list.
func normalizeExtraction(text string) (domain.ExtractedFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &raw); err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("parse extraction json: %w", err)
	}
	if raw == nil {
		return domain.ExtractedFields{}, errors.New("parse extraction json: null object")
	}

	return domain.ExtractedFields{
		Name:        optionalText(raw["name"]),
		Company:     optionalText(raw["company"]),
		Phone:       schema.DecodeList(raw["phone"]),
		Email:       schema.DecodeList(raw["email"]),
		Website:     optionalText(raw["website"]),
		Description: optionalText(raw["description"]),
		Tags:        tagList(raw["tags"]),
	}, nil
}

func optionalText(raw json.RawMessage) *string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return nil
	}
	return &s
}

func tagList(raw json.RawMessage) []string {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return []string{}
	}
	return schema.DecodeList(raw)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
