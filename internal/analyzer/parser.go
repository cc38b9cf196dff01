package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dharmasatrya/flightadvisor/internal/models"
)

const maxRecommendations = 3

var requiredKeys = []string{"summary", "recommendations", "insights"}

var ErrNoJSONObject = errors.New("model response contains no JSON object")

type rawRecommendation struct {
	Recommendation string      `json:"recommendation"`
	Details        string      `json:"details"`
	FlightIndex    json.Number `json:"flight_index"`
}

// ParseResponse decodes the model's text. The text is parsed as-is first;
// only when that fails are code fences and anything outside the outermost
// object stripped. Recommendations that point outside [0, flightCount) are
// dropped.
func ParseResponse(text string, flightCount int) (models.AnalyzerResponse, error) {
	top, err := decodeObject(text)
	if err != nil {
		return models.AnalyzerResponse{}, err
	}

	if len(top) != len(requiredKeys) {
		return models.AnalyzerResponse{}, fmt.Errorf("expected exactly %d top-level keys, got %d", len(requiredKeys), len(top))
	}
	for _, key := range requiredKeys {
		if _, ok := top[key]; !ok {
			return models.AnalyzerResponse{}, fmt.Errorf("missing %q in model response", key)
		}
	}

	var resp models.AnalyzerResponse

	var summary map[string]any
	if err := json.Unmarshal(top["summary"], &summary); err != nil {
		return models.AnalyzerResponse{}, fmt.Errorf("summary: %w", err)
	}
	if msg, ok := summary["message"].(string); ok {
		resp.Summary.Message = msg
	}

	var recs []rawRecommendation
	if err := json.Unmarshal(top["recommendations"], &recs); err != nil {
		return models.AnalyzerResponse{}, fmt.Errorf("recommendations: %w", err)
	}
	resp.Recommendations = make([]models.Recommendation, 0, maxRecommendations)
	for _, r := range recs {
		idx, err := r.FlightIndex.Int64()
		if err != nil || idx < 0 || int(idx) >= flightCount {
			continue
		}
		resp.Recommendations = append(resp.Recommendations, models.Recommendation{
			Recommendation: r.Recommendation,
			Details:        r.Details,
			FlightIndex:    int(idx),
		})
		if len(resp.Recommendations) == maxRecommendations {
			break
		}
	}

	var insights map[string]any
	if err := json.Unmarshal(top["insights"], &insights); err != nil {
		return models.AnalyzerResponse{}, fmt.Errorf("insights: %w", err)
	}
	resp.Insights.General = generalInsight(insights["general"])

	return resp, nil
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err == nil && top != nil {
		return top, nil
	}

	cleaned := stripFences(text)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &top); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return top, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	return text
}

func generalInsight(v any) string {
	switch g := v.(type) {
	case string:
		return g
	case []any:
		parts := make([]string, 0, len(g))
		for _, p := range g {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
