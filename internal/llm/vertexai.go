package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const (
	defaultVertexLocation = "us-central1"
	defaultVertexModel    = "gemini-1.5-flash"
)

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	projectID string
	location  string
}

// NewVertexAIClient creates a new Vertex AI client. Empty location and model
// fall back to us-central1 and gemini-1.5-flash.
func NewVertexAIClient(ctx context.Context, projectID, location, model string) (*VertexAIClient, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("google cloud project is required for vertex ai")
	}
	if location == "" {
		location = defaultVertexLocation
	}
	if model == "" {
		model = defaultVertexModel
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	gm := client.GenerativeModel(model)

	// Low temperature keeps scores comparable across a batch
	gm.SetTemperature(0.2)
	gm.SetTopK(40)
	gm.SetTopP(0.95)
	gm.SetMaxOutputTokens(2048)
	gm.ResponseMIMEType = "application/json"

	return &VertexAIClient{
		client:    client,
		model:     gm,
		projectID: projectID,
		location:  location,
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}
