package judge

import (
	"context"
	"errors"
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/utils"
	"go.uber.org/mock/gomock"
)

func newMockedJudge(t *testing.T) (*CopilotJudge, *MockcopilotClient, *MockcopilotSession) {
	ctrl := gomock.NewController(t)
	clientMock := NewMockcopilotClient(ctrl)
	sessionMock := NewMockcopilotSession(ctrl)

	j := NewCopilotJudge("judge-model", &CopilotJudgeOptions{
		NewCopilotClient: func(clientOptions *copilot.ClientOptions) copilotClient {
			require.False(t, *clientOptions.AutoStart)
			return clientMock
		},
	})
	return j, clientMock, sessionMock
}

func TestCopilotJudgeEvaluate(t *testing.T) {
	j, clientMock, sessionMock := newMockedJudge(t)

	unsubscribed := 0

	clientMock.EXPECT().Start(gomock.Any()).Times(1)
	clientMock.EXPECT().CreateSession(gomock.Any(), &copilot.SessionConfig{Model: "judge-model"}).Times(2).Return(sessionMock, nil)
	clientMock.EXPECT().Stop()

	sessionMock.EXPECT().On(gomock.Any()).Times(2).Return(func() { unsubscribed++ })
	sessionMock.EXPECT().SendAndWait(gomock.Any(), copilot.MessageOptions{Prompt: "score this"}).Times(2).
		Return(&copilot.SessionEvent{Data: copilot.Data{Content: utils.Ptr("**Clarity: 4**\n*Justification: ok*")}}, nil)

	for range 2 {
		resp, err := j.Evaluate(context.Background(), "score this")
		require.NoError(t, err)
		require.Equal(t, "**Clarity: 4**\n*Justification: ok*", resp)
	}

	require.Equal(t, 2, unsubscribed)
	require.NoError(t, j.Close())
}

func TestCopilotJudgeStartFailure(t *testing.T) {
	j, clientMock, _ := newMockedJudge(t)

	clientMock.EXPECT().Start(gomock.Any()).Return(errors.New("not logged in"))

	_, err := j.Evaluate(context.Background(), "p")
	require.ErrorContains(t, err, "copilot failed to start: not logged in")

	// the start error sticks; no second attempt is made
	_, err = j.Evaluate(context.Background(), "p")
	require.ErrorContains(t, err, "not logged in")
}

func TestCopilotJudgeSendFailure(t *testing.T) {
	j, clientMock, sessionMock := newMockedJudge(t)

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(sessionMock, nil)
	sessionMock.EXPECT().On(gomock.Any()).Return(func() {})
	sessionMock.EXPECT().SendAndWait(gomock.Any(), gomock.Any()).Return(nil, errors.New("rate limited"))

	_, err := j.Evaluate(context.Background(), "p")
	require.ErrorContains(t, err, "failed to send prompt: rate limited")
}

func TestCopilotJudgeNoContent(t *testing.T) {
	j, clientMock, sessionMock := newMockedJudge(t)

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(sessionMock, nil)
	sessionMock.EXPECT().On(gomock.Any()).Return(func() {})
	sessionMock.EXPECT().SendAndWait(gomock.Any(), gomock.Any()).Return(&copilot.SessionEvent{}, nil)

	_, err := j.Evaluate(context.Background(), "p")
	require.ErrorContains(t, err, "no response content")
}

func TestCopilotJudgeCreateSessionFailure(t *testing.T) {
	j, clientMock, _ := newMockedJudge(t)

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	_, err := j.Evaluate(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}
