package ocr

import (
	"context"
	"errors"
	"strings"
)

// Request is one image handed to an engine, already base64-encoded.
type Request struct {
	EncodedContent string
	MediaType      string
	Instruction    string
}

// Engine performs a single call to an external text-extraction service.
type Engine interface {
	Name() string
	GetModel() string
	Extract(ctx context.Context, in Request) (string, error)
}

type Engines struct {
	Gemini Engine
	OpenAI Engine
	Yandex Engine
}

var ErrUnknownEngine = errors.New("unknown engine; use 'gemini', 'openai' or 'yandex'")

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		eng = e.Gemini
	case "gpt", "openai":
		eng = e.OpenAI
	case "yandex":
		eng = e.Yandex
	default:
		return nil, ErrUnknownEngine
	}
	if eng == nil {
		return nil, errors.New(name + " engine is not configured")
	}
	return eng, nil
}
