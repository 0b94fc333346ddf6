/*
Copyright 2026 The NexusForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package planner

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tmc/langchaingo/llms"

	"github.com/nexusforge/substrate/internal/corerr"
)

// AnthropicModel adapts the Anthropic SDK's Messages API to langchaingo's
// llms.Model seam, so the rest of the planner depends only on the generic
// interface while the wire call goes straight through the vendor SDK rather
// than through langchaingo's own provider wrapper.
type AnthropicModel struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicModel builds a model bound to a single Claude model name.
func NewAnthropicModel(apiKey string, model anthropic.Model, maxTokens int64) *AnthropicModel {
	return &AnthropicModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// GenerateContent implements llms.Model by flattening the supplied messages
// into a single Anthropic conversation and returning its first candidate.
func (m *AnthropicModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var system string
	var turns []anthropic.MessageParam

	for _, msg := range messages {
		text := flattenParts(msg.Parts)
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			system = text
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		case llms.ChatMessageTypeAI:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, corerr.New(corerr.KindUnavailable, "anthropic.Messages.New", err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: out}},
	}, nil
}

func flattenParts(parts []llms.ContentPart) string {
	var out string
	for _, p := range parts {
		if tp, ok := p.(llms.TextContent); ok {
			out += tp.Text
		}
	}
	return out
}
