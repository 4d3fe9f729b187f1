package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"partsagent/internal/retrieval"
)

// NewModelTool creates the scrape_model tool backed by the retrieval service
func NewModelTool(svc *retrieval.Service) *Tool {
	return &Tool{
		Name:        "scrape_model",
		DisplayName: "Look Up Appliance Model",
		Description: "Look up a refrigerator or dishwasher model on PartSelect by its model number (e.g. WDT780SAEM1). Returns the model's title, description, instructions and the list of compatible parts. Use this when the user asks what fits their appliance or mentions a model number.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"model_number": map[string]interface{}{
					"type":        "string",
					"description": "The appliance model number as printed on the appliance label",
				},
			},
			"required": []string{"model_number"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			modelNumber, ok := args["model_number"].(string)
			if !ok || modelNumber == "" {
				return "", fmt.Errorf("model_number parameter is required and must be a string")
			}

			record, err := svc.ScrapeModel(ctx, SessionIDFrom(ctx), modelNumber)
			if err != nil {
				return "", fmt.Errorf("failed to look up model %s: %w", modelNumber, err)
			}
			if record == nil {
				miss, _ := json.Marshal(map[string]interface{}{
					"found":        false,
					"model_number": modelNumber,
				})
				return string(miss), nil
			}

			payload, err := json.Marshal(struct {
				Found bool `json:"found"`
				*retrieval.ModelRecord
			}{Found: true, ModelRecord: record})
			if err != nil {
				return "", fmt.Errorf("failed to encode model data: %w", err)
			}
			return string(payload), nil
		},
		Category: "retrieval",
		Keywords: []string{"model", "appliance", "lookup", "partselect", "parts", "fit", "compatible"},
	}
}
