package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool represents a callable tool with its metadata and execution function
type Tool struct {
	Name        string
	DisplayName string // User-friendly name (e.g., "Look Up Part")
	Description string
	Parameters  map[string]interface{}
	Execute     ExecuteFunc
	Category    string   // Tool category: retrieval, diagnostics
	Keywords    []string // Keywords for routing hints
}

// ExecuteFunc is the function signature for tool execution.
// The returned string is a JSON document handed back to the model verbatim.
type ExecuteFunc func(ctx context.Context, args map[string]interface{}) (string, error)

// Registry manages all available tools
type Registry struct {
	tools map[string]*Tool
	mutex sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a new tool to the registry
func (r *Registry) Register(tool *Tool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if tool.Execute == nil {
		return fmt.Errorf("tool %s must have an Execute function", tool.Name)
	}

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools in OpenAI tool format
func (r *Registry) List() []map[string]interface{} {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tools := make([]map[string]interface{}, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return tools
}

// Execute runs a tool by name with given arguments
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("tool %s not found", name)
	}
	return tool.Execute(ctx, args)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.tools)
}
