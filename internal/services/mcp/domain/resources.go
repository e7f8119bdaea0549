package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CatalogResourceURI is the URI of the action catalog resource.
const CatalogResourceURI = "musescore://actions"

// CatalogPayload is the JSON body of the action catalog resource.
type CatalogPayload struct {
	Actions      []ActionDescriptor `json:"actions"`
	Sequenceable []ActionName       `json:"sequenceable"`
}

// CatalogResource describes the readable action catalog.
func CatalogResource() *mcp.Resource {
	return &mcp.Resource{
		URI:         CatalogResourceURI,
		Name:        "musescore_actions",
		Title:       "MuseScore actions",
		Description: "Every action the MuseScore plugin accepts, with parameter types and defaults",
		MIMEType:    "application/json",
	}
}

// CatalogResourceHandler serves the action catalog.
func CatalogResourceHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := CatalogResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != CatalogResourceURI {
			return nil, fmt.Errorf("unknown resource URI %q", uri)
		}

		data, err := json.MarshalIndent(CatalogPayload{
			Actions:      Catalog(),
			Sequenceable: SequenceableActions(),
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal action catalog: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
