package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"partsagent/internal/retrieval"
)

// NewProductTool creates the scrape_product tool backed by the retrieval service
func NewProductTool(svc *retrieval.Service) *Tool {
	return &Tool{
		Name:        "scrape_product",
		DisplayName: "Look Up Part",
		Description: "Look up a refrigerator or dishwasher part on PartSelect by its PS part number (e.g. PS11752778). Returns the part's title, description, installation guide, compatible models, specifications and related parts. Use this whenever the user asks about a specific part.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"part_number": map[string]interface{}{
					"type":        "string",
					"description": "The PartSelect part number, starting with PS followed by digits",
				},
			},
			"required": []string{"part_number"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			partNumber, ok := args["part_number"].(string)
			if !ok || partNumber == "" {
				return "", fmt.Errorf("part_number parameter is required and must be a string")
			}

			record, err := svc.ScrapeProduct(ctx, SessionIDFrom(ctx), partNumber)
			if err != nil {
				return "", fmt.Errorf("failed to look up part %s: %w", partNumber, err)
			}
			if record == nil {
				miss, _ := json.Marshal(map[string]interface{}{
					"found":       false,
					"part_number": partNumber,
				})
				return string(miss), nil
			}

			payload, err := json.Marshal(struct {
				Found bool `json:"found"`
				*retrieval.ProductRecord
			}{Found: true, ProductRecord: record})
			if err != nil {
				return "", fmt.Errorf("failed to encode part data: %w", err)
			}
			return string(payload), nil
		},
		Category: "retrieval",
		Keywords: []string{"part", "product", "lookup", "partselect", "install", "compatibility", "specs"},
	}
}
