package message

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MessengerClientMock struct {
	mock.Mock
}

func (m *MessengerClientMock) SendMessage(ctx context.Context, message Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MessengerClientMock) MessengerType() MessengerType {
	return m.Called().Get(0).(MessengerType)
}

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

func NewMessengerClientMock(t testInterface) *MessengerClientMock {
	m := &MessengerClientMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ MessengerClient = (*MessengerClientMock)(nil)

type MockMessageDispatcher struct {
	mock.Mock
}

func (m *MockMessageDispatcher) RegisterClient(ctx context.Context, channel MessageChannel, client MessengerClient) {
	m.Called(ctx, channel, client)
}

func (m *MockMessageDispatcher) SendMessage(ctx context.Context, message Message, channelPriority []MessageChannel) (MessengerType, error) {
	args := m.Called(ctx, message, channelPriority)
	return args.Get(0).(MessengerType), args.Error(1)
}

func (m *MockMessageDispatcher) GetClient(channel MessageChannel) (MessengerClient, error) {
	args := m.Called(channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(MessengerClient), args.Error(1)
}

var _ MessageDispatcherInterface = (*MockMessageDispatcher)(nil)
