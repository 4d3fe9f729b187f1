package services

import (
	"regexp"
	"strings"

	"partsagent/internal/models"
)

var (
	partNumberRe = regexp.MustCompile(`(?i)PS\d+`)
	modelTokenRe = regexp.MustCompile(`\b[A-Z0-9]{8,15}\b`)
)

// AnalyzeQuery extracts part numbers, model numbers and the question intent
// from a raw user query. Pure string work, no model call involved.
func AnalyzeQuery(query string) (models.QueryEntities, string) {
	return ExtractEntities(query), ClassifyIntent(query)
}

// ExtractEntities pulls part and model identifiers out of a query.
// Part numbers are PS followed by digits. Model numbers are 8-15 character
// alphanumeric tokens that are not part numbers.
func ExtractEntities(query string) models.QueryEntities {
	var entities models.QueryEntities

	seenParts := map[string]bool{}
	for _, m := range partNumberRe.FindAllString(query, -1) {
		m = strings.ToUpper(m)
		if !seenParts[m] {
			seenParts[m] = true
			entities.PartNumbers = append(entities.PartNumbers, m)
		}
	}

	seenModels := map[string]bool{}
	for _, m := range modelTokenRe.FindAllString(query, -1) {
		if strings.HasPrefix(m, "PS") && partNumberRe.MatchString(m) {
			continue
		}
		if !seenModels[m] {
			seenModels[m] = true
			entities.ModelNumbers = append(entities.ModelNumbers, m)
		}
	}

	return entities
}

// ClassifyIntent buckets a query into installation, compatibility,
// troubleshooting or general.
func ClassifyIntent(query string) string {
	q := strings.ToLower(query)

	switch {
	case containsAny(q, "install", "installation", "how to install"):
		return models.IntentInstallation
	case containsAny(q, "compatible", "compatibility", "fit"):
		return models.IntentCompatibility
	case containsAny(q, "fix", "repair", "troubleshoot", "not working"):
		return models.IntentTroubleshooting
	default:
		return models.IntentGeneral
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
