package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"partsagent/internal/models"
	"partsagent/internal/tools"
)

const outOfScopeIntent = "out_of_scope"

// ChatService runs the per-turn orchestration: scope gate, context window,
// the tool-calling loop against the reasoning model, attribution, and
// persistence of both sides of the exchange.
type ChatService struct {
	sessions  *SessionService
	feedback  *FeedbackService
	scope     *ScopeClassifier
	registry  *tools.Registry
	client    CompletionClient
	maxRounds int
}

// NewChatService creates the orchestrator
func NewChatService(sessions *SessionService, feedback *FeedbackService, scope *ScopeClassifier,
	registry *tools.Registry, client CompletionClient, maxRounds int) *ChatService {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	return &ChatService{
		sessions:  sessions,
		feedback:  feedback,
		scope:     scope,
		registry:  registry,
		client:    client,
		maxRounds: maxRounds,
	}
}

// Process answers one user message. The session lock is held from the window
// read through the final append so concurrent turns on the same session
// cannot interleave.
func (c *ChatService) Process(ctx context.Context, sessionID, query string) (*models.ChatResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("message is required")
	}

	if sessionID == "" {
		var err error
		sessionID, err = c.sessions.Create()
		if err != nil {
			return nil, err
		}
	}

	mu := c.sessions.Lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	log.Printf("📨 Processing user message for session %s: %s", sessionID, truncateRunes(query, 100))

	entities, intent := AnalyzeQuery(query)

	// Scope gate runs before any retrieval or reasoning spend
	if !c.scope.InScope(ctx, query) {
		log.Printf("🚫 [SCOPE] Query rejected for session %s", sessionID)
		answer := OutOfScopeResponse()
		if err := c.persistTurn(sessionID, query, answer, outOfScopeIntent, entities, nil, nil); err != nil {
			return nil, err
		}
		return &models.ChatResponse{
			SessionID: sessionID,
			Answer:    answer,
			Intent:    outOfScopeIntent,
			Entities:  entities,
			InScope:   false,
		}, nil
	}

	history, err := c.sessions.RecentHistory(sessionID)
	if err != nil {
		return nil, err
	}

	insights := c.feedback.Analyze(sessionID)
	if insights.HasInsights {
		log.Printf("📊 Feedback analysis: %d up, %d down (ratio: %.0f%%), %d enhancements",
			insights.ThumbsUp, insights.ThumbsDown, insights.FeedbackRatio*100, len(insights.Enhancements))
	}

	messages := c.buildMessages(history, query, entities, insights)

	ctx = tools.WithSessionID(ctx, sessionID)
	answer, sourceURLs, trace, rounds, incomplete := c.runLoop(ctx, sessionID, messages)

	if err := c.persistTurn(sessionID, query, answer, intent, entities, sourceURLs, trace); err != nil {
		return nil, err
	}

	log.Printf("✅ Chat completed for session %s (rounds: %d, sources: %d)", sessionID, rounds, len(sourceURLs))

	return &models.ChatResponse{
		SessionID:   sessionID,
		Answer:      answer,
		Intent:      intent,
		Entities:    entities,
		InScope:     true,
		SourcesUsed: len(sourceURLs),
		SourceURLs:  sourceURLs,
		ToolTrace:   trace,
		Rounds:      rounds,
		Incomplete:  incomplete,
	}, nil
}

// buildMessages assembles the model transcript: adapted system prompt, the
// recent window, and the current query with an entity hint when identifiers
// were detected.
func (c *ChatService) buildMessages(history []models.Message, query string, entities models.QueryEntities, insights *FeedbackInsights) []map[string]interface{} {
	systemPrompt := EnhancePrompt(baseSystemPrompt, insights)

	messages := []map[string]interface{}{
		{"role": "system", "content": systemPrompt},
	}

	for _, msg := range history {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	content := query
	if len(entities.PartNumbers) > 0 || len(entities.ModelNumbers) > 0 {
		hint := "\n\nDETECTED IN QUERY:\n"
		if len(entities.PartNumbers) > 0 {
			hint += fmt.Sprintf("- Part number(s): %s - YOU MUST call scrape_product() for each\n",
				strings.Join(entities.PartNumbers, ", "))
		}
		if len(entities.ModelNumbers) > 0 {
			hint += fmt.Sprintf("- Model number(s): %s - YOU MUST call scrape_model() for each\n",
				strings.Join(entities.ModelNumbers, ", "))
		}
		hint += "Do NOT ask the user for these - they are already in the query. Call the scraping tools NOW!"
		content += hint
	}
	messages = append(messages, map[string]interface{}{"role": "user", "content": content})

	return messages
}

// runLoop drives the tool-calling loop. Each retrieval round executes the
// model's requested tools, feeds results back, and asks again. The round
// budget bounds retrieval; exhausting it forces a finalize call without
// tools. Tool failures become observations, never turn failures. Only a
// reasoning transport failure degrades the whole turn.
func (c *ChatService) runLoop(ctx context.Context, sessionID string, messages []map[string]interface{}) (answer string, sourceURLs []string, trace []models.ToolTraceRow, rounds int, incomplete bool) {
	collector := newSourceCollector()
	dedup := map[string]toolObservation{} // normalized call -> prior outcome, scoped to this turn
	toolSchemas := c.registry.List()
	trace = []models.ToolTraceRow{}

	for {
		select {
		case <-ctx.Done():
			log.Printf("⚠️  [CHAT %s] Turn cancelled after %d rounds", sessionID, rounds)
			return degradedResponse, collector.URLs(), trace, rounds, false
		default:
		}

		decision, err := c.client.Complete(ctx, messages, toolSchemas)
		if err != nil {
			if errors.Is(err, ErrMalformedDecision) {
				// Retryable, but it consumes budget so a persistently
				// confused model still terminates.
				rounds++
				log.Printf("⚠️  [CHAT %s] Malformed decision (round %d): %v", sessionID, rounds, err)
				if rounds > c.maxRounds {
					return degradedResponse, collector.URLs(), trace, rounds, false
				}
				continue
			}
			log.Printf("❌ [CHAT %s] Reasoning call failed: %v", sessionID, err)
			return degradedResponse, collector.URLs(), trace, rounds, false
		}

		if decision.IsFinal() {
			return decision.Answer, collector.URLs(), trace, rounds, false
		}

		if rounds >= c.maxRounds {
			log.Printf("⚠️  [CHAT %s] Round budget exhausted, forcing finalize", sessionID)
			final, err := c.client.Complete(ctx, messages, nil)
			if err != nil || final.Answer == "" {
				return degradedResponse, collector.URLs(), trace, rounds, true
			}
			return final.Answer + incompleteNote, collector.URLs(), trace, rounds, true
		}

		rounds++

		assistantMsg := map[string]interface{}{
			"role":       "assistant",
			"tool_calls": toolCallPayload(decision.ToolCalls),
		}
		if decision.Answer != "" {
			assistantMsg["content"] = decision.Answer
		}
		messages = append(messages, assistantMsg)

		for _, tc := range decision.ToolCalls {
			result, status, duration := c.invokeTool(ctx, sessionID, tc, dedup)
			collector.CollectFromResult(result)

			trace = append(trace, models.ToolTraceRow{
				ID:       tc.ID,
				Name:     tc.Name,
				Args:     tc.Arguments,
				Round:    rounds,
				Status:   status,
				Duration: duration,
			})

			messages = append(messages, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"name":         tc.Name,
				"content":      result,
			})
		}
	}
}

// toolObservation is one tool call outcome held in the turn cache
type toolObservation struct {
	result string
	status string
}

// invokeTool executes one requested tool call. Repeated identical calls in
// the same turn are served from the turn-local cache without re-executing,
// replaying the original outcome's status. All failures are reported to the
// model as observation strings.
func (c *ChatService) invokeTool(ctx context.Context, sessionID string, tc ToolCallRequest, dedup map[string]toolObservation) (result, status string, durationMs int64) {
	key := dedupKey(tc.Name, tc.Arguments)
	if prior, ok := dedup[key]; ok {
		log.Printf("🔁 [CHAT %s] Duplicate call %s served from turn cache", sessionID, tc.Name)
		return prior.result, prior.status, 0
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		result = fmt.Sprintf("Tool error: could not parse arguments: %v", err)
		dedup[key] = toolObservation{result: result, status: "error"}
		return result, "error", 0
	}

	log.Printf("🔧 [CHAT %s] Tool called: %s(%s)", sessionID, tc.Name, tc.Arguments)
	start := time.Now()
	out, err := c.registry.Execute(ctx, tc.Name, args)
	durationMs = time.Since(start).Milliseconds()

	if err != nil {
		log.Printf("❌ [CHAT %s] Tool %s failed: %v", sessionID, tc.Name, err)
		result = fmt.Sprintf("Tool error: %v", err)
		status = "error"
	} else {
		result = out
		status = "completed"
		if strings.Contains(out, `"found":false`) || strings.Contains(out, `"found": false`) {
			status = "miss"
		}
	}

	dedup[key] = toolObservation{result: result, status: status}
	return result, status, durationMs
}

func (c *ChatService) persistTurn(sessionID, query, answer, intent string, entities models.QueryEntities, sourceURLs []string, trace []models.ToolTraceRow) error {
	if err := c.sessions.AddMessage(sessionID, models.Message{
		Role:     models.RoleUser,
		Content:  query,
		Intent:   intent,
		Entities: entities,
	}); err != nil {
		return err
	}
	return c.sessions.AddMessage(sessionID, models.Message{
		Role:       models.RoleAssistant,
		Content:    answer,
		Intent:     intent,
		SourceURLs: sourceURLs,
		ToolTrace:  trace,
	})
}

// toolCallPayload rebuilds the wire representation of tool calls for the
// assistant transcript message.
func toolCallPayload(calls []ToolCallRequest) []map[string]interface{} {
	payload := make([]map[string]interface{}, 0, len(calls))
	for _, tc := range calls {
		payload = append(payload, map[string]interface{}{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      tc.Name,
				"arguments": tc.Arguments,
			},
		})
	}
	return payload
}

// dedupKey canonicalizes a tool call so semantically identical requests
// collide: arguments parsed, string values uppercased and trimmed, keys
// sorted.
func dedupKey(name, argsJSON string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return name + "|" + strings.ToUpper(strings.TrimSpace(argsJSON))
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		if s, ok := args[k].(string); ok {
			sb.WriteString(strings.ToUpper(strings.TrimSpace(s)))
		} else {
			v, _ := json.Marshal(args[k])
			sb.Write(v)
		}
	}
	return sb.String()
}
