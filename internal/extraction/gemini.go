package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Provider using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini creates a Gemini provider for one model. A missing API key is a
// configuration error.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required: set --gemini-key or GEMINI_API_KEY")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		name:   "gemini/" + modelName,
	}, nil
}

func (g *Gemini) Name() string {
	return g.name
}

// Extract sends the instruction block plus the raw input as ordered content
// parts and parses the structured response.
func (g *Gemini) Extract(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	parts := []genai.Part{genai.Text(buildInstructions(req.Today, req.VendorHints))}
	for _, att := range req.Files {
		imageData, textBlock, err := prepareAttachment(att)
		if err != nil {
			return nil, err
		}
		if textBlock != "" {
			parts = append(parts, genai.Text("\n\n"+textBlock))
			continue
		}
		parts = append(parts, genai.ImageData("png", imageData))
	}
	if req.Text != "" {
		parts = append(parts, genai.Text("\n\nThe user input is:\n"+req.Text))
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason == genai.BlockReasonSafety {
		return nil, fmt.Errorf("prompt blocked: %w", ErrSafetyRejected)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return nil, fmt.Errorf("response withheld: %w", ErrSafetyRejected)
		}
		return nil, &SchemaError{Reason: "no response from gemini"}
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("response withheld: %w", ErrSafetyRejected)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return parseResult(responseText.String())
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
