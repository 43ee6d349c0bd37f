package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Marius-prog/Leads-generator/pkg/anthropic"
	"github.com/Marius-prog/Leads-generator/pkg/perplexity"
	"github.com/Marius-prog/Leads-generator/pkg/places"
)

// --- Places Mock ---

type mockPlacesClient struct {
	mock.Mock
}

func (m *mockPlacesClient) TextSearch(ctx context.Context, query string, maxResults int) ([]places.Place, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]places.Place), args.Error(1)
}

// --- Perplexity Mock ---

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}
