package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPCompletionClient_FinalAnswer(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %s", auth)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "The part is in stock."}},
			},
		})
	})

	client := NewHTTPCompletionClient(srv.URL, "test-key", "deepseek-chat", 5*time.Second)
	decision, err := client.Complete(context.Background(), []map[string]interface{}{
		{"role": "user", "content": "Is PS123 in stock?"},
	}, nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !decision.IsFinal() {
		t.Error("Expected a final decision")
	}
	if decision.Answer != "The part is in stock." {
		t.Errorf("Unexpected answer: %q", decision.Answer)
	}
}

func TestHTTPCompletionClient_ToolCalls(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["tools"]; !ok {
			t.Error("Expected tools in the request body")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"content": "",
					"tool_calls": []map[string]interface{}{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "scrape_product",
							"arguments": `{"part_number":"PS123"}`,
						},
					}},
				},
			}},
		})
	})

	client := NewHTTPCompletionClient(srv.URL, "k", "m", 5*time.Second)
	tools := []map[string]interface{}{{"type": "function"}}
	decision, err := client.Complete(context.Background(), nil, tools)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if decision.IsFinal() {
		t.Fatal("Expected tool calls, not a final answer")
	}
	tc := decision.ToolCalls[0]
	if tc.Name != "scrape_product" || tc.ID != "call_1" {
		t.Errorf("Unexpected tool call: %+v", tc)
	}
}

func TestHTTPCompletionClient_ServerError(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	})

	client := NewHTTPCompletionClient(srv.URL, "k", "m", 5*time.Second)
	_, err := client.Complete(context.Background(), nil, nil)
	if !errors.Is(err, ErrReasoningUnavailable) {
		t.Errorf("Expected ErrReasoningUnavailable, got %v", err)
	}
}

func TestHTTPCompletionClient_Unreachable(t *testing.T) {
	client := NewHTTPCompletionClient("http://127.0.0.1:1", "k", "m", time.Second)
	_, err := client.Complete(context.Background(), nil, nil)
	if !errors.Is(err, ErrReasoningUnavailable) {
		t.Errorf("Expected ErrReasoningUnavailable, got %v", err)
	}
}

func TestHTTPCompletionClient_MalformedResponses(t *testing.T) {
	bodies := []string{
		`not json at all`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":"","tool_calls":[{"id":"x","function":{"name":"","arguments":"{}"}}]}}]}`,
	}

	for _, body := range bodies {
		srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		client := NewHTTPCompletionClient(srv.URL, "k", "m", 5*time.Second)
		_, err := client.Complete(context.Background(), nil, nil)
		if !errors.Is(err, ErrMalformedDecision) {
			t.Errorf("Body %q: expected ErrMalformedDecision, got %v", body, err)
		}
	}
}
