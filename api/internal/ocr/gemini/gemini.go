package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/util"
)

const DefaultModel = "gemini-3-flash-preview"

type Engine struct {
	APIKey string
	Model  string
	// extra client options (endpoint overrides, custom HTTP clients)
	opts []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Extract(ctx context.Context, in ocr.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	parts, err := buildParts(in)
	if err != nil {
		return "", err
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
	if err != nil {
		return "", fmt.Errorf("gemini: new client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", serviceError(err)
	}
	return responseText(resp), nil
}

// buildParts puts the image first and the instruction second.
func buildParts(in ocr.Request) ([]genai.Part, error) {
	img, _, err := util.DecodeBase64MaybeDataURL(in.EncodedContent)
	if err != nil {
		return nil, fmt.Errorf("gemini: bad base64: %w", err)
	}
	parts := []genai.Part{&genai.Blob{MIMEType: in.MediaType, Data: img}}
	if in.Instruction != "" {
		parts = append(parts, genai.Text(in.Instruction))
	}
	return parts, nil
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// serviceError surfaces the message the API put in its error body.
func serviceError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && strings.TrimSpace(ge.Message) != "" {
		return &ocr.ServiceError{Engine: "gemini", Message: ge.Message, Err: err}
	}
	if st, ok := status.FromError(err); ok && strings.TrimSpace(st.Message()) != "" {
		return &ocr.ServiceError{Engine: "gemini", Message: st.Message(), Err: err}
	}
	return &ocr.ServiceError{Engine: "gemini", Err: err}
}
