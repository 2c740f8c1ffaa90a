package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/util"
)

const DefaultModel = "gpt-4o-mini"

// Engine talks to any OpenAI-compatible chat completions endpoint with vision support.
type Engine struct {
	APIKey string
	Model  string
	client *goopenai.Client
}

func New(key, model, baseURL string) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	cfg := goopenai.DefaultConfig(strings.TrimSpace(key))
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = u
	}
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  model,
		client: goopenai.NewClientWithConfig(cfg),
	}
}

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Extract(ctx context.Context, in ocr.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	if !isOpenAIImageMIME(in.MediaType) {
		return "", &ocr.ServiceError{Engine: e.Name(), Message: fmt.Sprintf("unsupported image type for openai: %s", in.MediaType)}
	}

	resp, err := e.client.CreateChatCompletion(ctx, buildRequest(e.Model, in))
	if err != nil {
		return "", serviceError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// buildRequest sends the image first and the instruction second, in one user message.
func buildRequest(model string, in ocr.Request) goopenai.ChatCompletionRequest {
	payload, _ := util.StripDataURL(in.EncodedContent)
	parts := []goopenai.ChatMessagePart{
		{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    util.MakeDataURL(in.MediaType, payload),
				Detail: goopenai.ImageURLDetailHigh,
			},
		},
	}
	if in.Instruction != "" {
		parts = append(parts, goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: in.Instruction})
	}
	return goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: 0,
	}
}

func serviceError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return &ocr.ServiceError{Engine: "openai", Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &ocr.ServiceError{Engine: "openai", Message: fmt.Sprintf("openai %d: %v", reqErr.HTTPStatusCode, reqErr.Err), Err: err}
	}
	return err
}

func isOpenAIImageMIME(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
