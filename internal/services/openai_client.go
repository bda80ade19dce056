package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/utils"
)

type openAIClient struct {
	client *openai.Client
	log    *logger.Logger
}

// NewOpenAIClient builds the AIClient backed by the OpenAI chat completions
// API. OPENAI_BASE_URL allows pointing at a compatible proxy.
func NewOpenAIClient(log *logger.Logger) (AIClient, error) {
	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(utils.GetEnv("OPENAI_BASE_URL", "", log)); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		log:    log.With("service", "OpenAIClient"),
	}, nil
}

func (c *openAIClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return GenerateResult{}, err
	}
	if len(resp.Choices) == 0 {
		return GenerateResult{}, fmt.Errorf("provider returned no choices")
	}
	return GenerateResult{
		Text:              resp.Choices[0].Message.Content,
		Model:             resp.Model,
		ProviderRequestID: resp.ID,
		Usage: AIUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *openAIClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta StreamHandler) (GenerateResult, error) {
	chatReq := c.buildRequest(req, true)
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return GenerateResult{}, err
	}
	defer stream.Close()

	var sb strings.Builder
	result := GenerateResult{}
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return GenerateResult{}, err
		}
		if response.ID != "" {
			result.ProviderRequestID = response.ID
		}
		if response.Model != "" {
			result.Model = response.Model
		}
		if response.Usage != nil {
			result.Usage = AIUsage{
				InputTokens:  response.Usage.PromptTokens,
				OutputTokens: response.Usage.CompletionTokens,
				TotalTokens:  response.Usage.TotalTokens,
			}
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return GenerateResult{}, err
			}
		}
	}

	result.Text = sb.String()
	return result, nil
}

func (c *openAIClient) buildRequest(req GenerateRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	if req.JSONOnly {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}
