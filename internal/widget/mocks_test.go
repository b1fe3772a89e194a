package widget

import (
	"context"

	"github.com/receptly/chat-widget/internal/transport"
	"github.com/stretchr/testify/mock"
)

// MockAgent mocks the Agent transport interface
type MockAgent struct {
	mock.Mock
}

func (m *MockAgent) FetchHistory(ctx context.Context, businessID, sessionID string) (*transport.HistoryResponse, error) {
	args := m.Called(ctx, businessID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.HistoryResponse), args.Error(1)
}

func (m *MockAgent) FetchGreeting(ctx context.Context, businessID, sessionID string) (*transport.GreetingResponse, error) {
	args := m.Called(ctx, businessID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.GreetingResponse), args.Error(1)
}

func (m *MockAgent) PostMessage(ctx context.Context, businessID, sessionID, text string) (*transport.ChatResponse, error) {
	args := m.Called(ctx, businessID, sessionID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.ChatResponse), args.Error(1)
}

func (m *MockAgent) DeleteSession(ctx context.Context, businessID, sessionID string) error {
	args := m.Called(ctx, businessID, sessionID)
	return args.Error(0)
}
