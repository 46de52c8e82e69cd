package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"docstream/internal/domain"
)

// AnalysisResult is the structured judgment returned by a provider call.
type AnalysisResult struct {
	SuggestedName     string
	DocumentType      string
	SuggestedTags     []string
	ExtractedMetadata map[string]any
	ConfidenceScore   float64
}

var validDocumentTypes = map[string]struct{}{
	"bill":           {},
	"invoice":        {},
	"receipt":        {},
	"bank_statement": {},
	"insurance":      {},
	"medical":        {},
	"tax":            {},
	"legal":          {},
	"correspondence": {},
	"report":         {},
	"other":          {},
}

// documentTypeAliases maps common model-invented labels to the closed vocabulary.
var documentTypeAliases = map[string]string{
	"pre-auth letter":         "insurance",
	"pre-auth":                "insurance",
	"preauth":                 "insurance",
	"eob":                     "insurance",
	"explanation of benefits": "insurance",
	"claim":                   "insurance",
	"coverage":                "insurance",
	"policy":                  "insurance",
	"statement":               "bank_statement",
	"contract":                "legal",
	"letter":                  "correspondence",
	"newsletter":              "correspondence",
}

// NormalizeDocumentType coerces a model-generated type to a valid vocabulary
// value. Unknown values fall back to "other"; the second return value is false
// in that case so callers can log a warning.
func NormalizeDocumentType(raw string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "other", false
	}
	if _, ok := validDocumentTypes[normalized]; ok {
		return normalized, true
	}
	if mapped, ok := documentTypeAliases[normalized]; ok {
		return mapped, true
	}
	// Substring matching as a last resort ("EOB statement" and friends).
	for alias, mapped := range documentTypeAliases {
		if strings.Contains(normalized, alias) || strings.Contains(alias, normalized) {
			return mapped, true
		}
	}
	return "other", false
}

type rawAnalysis struct {
	SuggestedName     string         `json:"suggested_name"`
	DocumentType      string         `json:"document_type"`
	SuggestedTags     []string       `json:"suggested_tags"`
	ExtractedMetadata map[string]any `json:"extracted_metadata"`
	ConfidenceScore   float64        `json:"confidence_score"`
}

// ParseAnalysis decodes a single JSON object from a raw provider response.
// Markdown code fences are tolerated and stripped. A response that does not
// decode is ErrMalformedResponse. The second return value is false when the
// document_type had to fall back to "other".
func ParseAnalysis(raw string) (*AnalysisResult, bool, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		var kept []string
		for _, line := range strings.Split(cleaned, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		cleaned = strings.Join(kept, "\n")
	}

	var data rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	docType, known := NormalizeDocumentType(data.DocumentType)

	tags := make([]string, 0, len(data.SuggestedTags))
	for _, t := range data.SuggestedTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if len(t) > 100 {
			t = t[:100]
		}
		tags = append(tags, t)
		if len(tags) == 5 {
			break
		}
	}

	meta := data.ExtractedMetadata
	if meta == nil {
		meta = map[string]any{}
	}

	score := data.ConfidenceScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return &AnalysisResult{
		SuggestedName:     data.SuggestedName,
		DocumentType:      docType,
		SuggestedTags:     tags,
		ExtractedMetadata: meta,
		ConfidenceScore:   score,
	}, known, nil
}
