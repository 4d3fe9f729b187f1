package services

import (
	"context"
	"log"
	"strings"
)

// ScopeClassifier decides whether a query is about refrigerator or dishwasher
// parts. Keyword classification is the default; the model-backed path is
// opt-in and falls back per the FailOpen policy when the model cannot answer.
type ScopeClassifier struct {
	UseLLM   bool
	FailOpen bool // On classifier failure treat the query as in-scope
	Client   CompletionClient
}

// NewScopeClassifier creates a classifier with the given policy
func NewScopeClassifier(useLLM, failOpen bool, client CompletionClient) *ScopeClassifier {
	return &ScopeClassifier{UseLLM: useLLM, FailOpen: failOpen, Client: client}
}

var outOfScopeKeywords = []string{
	"washing machine", "dryer", "oven", "stove", "microwave",
	"air conditioner", "heater", "vacuum",
}

var unrelatedTopics = []string{
	"weather", "news", "sports", "politics", "cooking recipe",
}

// InScope reports whether the query belongs to the assistant's domain
func (sc *ScopeClassifier) InScope(ctx context.Context, query string) bool {
	if sc.UseLLM && sc.Client != nil {
		inScope, err := sc.classifyWithModel(ctx, query)
		if err != nil {
			log.Printf("⚠️  [SCOPE] Model classification failed, fail_open=%v: %v", sc.FailOpen, err)
			return sc.FailOpen
		}
		return inScope
	}
	return keywordInScope(query)
}

// keywordInScope implements the keyword heuristic. A query naming another
// appliance without also naming a refrigerator or dishwasher is out, and so
// is one about an unrelated topic.
func keywordInScope(query string) bool {
	q := strings.ToLower(query)

	mentionsInScope := strings.Contains(q, "refrigerator") ||
		strings.Contains(q, "fridge") ||
		strings.Contains(q, "dishwasher")

	for _, kw := range outOfScopeKeywords {
		if strings.Contains(q, kw) && !mentionsInScope {
			return false
		}
	}

	for _, topic := range unrelatedTopics {
		if strings.Contains(q, topic) {
			return false
		}
	}

	return true
}

const scopeClassifierPrompt = `You are a strict classifier. Answer with exactly one word: "in" if the user query is about refrigerator or dishwasher parts, repair, installation, or compatibility, otherwise "out".`

func (sc *ScopeClassifier) classifyWithModel(ctx context.Context, query string) (bool, error) {
	messages := []map[string]interface{}{
		{"role": "system", "content": scopeClassifierPrompt},
		{"role": "user", "content": query},
	}

	decision, err := sc.Client.Complete(ctx, messages, nil)
	if err != nil {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(decision.Answer))
	return strings.HasPrefix(answer, "in"), nil
}

// OutOfScopeResponse is the canned redirect for rejected queries
func OutOfScopeResponse() string {
	return `I'm a specialized assistant for PartSelect, focusing on Refrigerator and Dishwasher parts.

I can help you with:
- Product information and part numbers
- Compatibility checks between parts and appliance models
- Installation instructions
- Troubleshooting common issues

If you have questions about other appliances or topics outside this scope, I recommend contacting PartSelect customer service directly.`
}
