package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSQS struct {
	messages []types.Message
	deleted  []string
	sent     []string
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, sdkaws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func TestPollOnceDeletesOnlyHandledMessages(t *testing.T) {
	api := &fakeSQS{messages: []types.Message{
		{MessageId: sdkaws.String("1"), ReceiptHandle: sdkaws.String("rh-1"), Body: sdkaws.String("ok")},
		{MessageId: sdkaws.String("2"), ReceiptHandle: sdkaws.String("rh-2"), Body: sdkaws.String("retry")},
		{MessageId: sdkaws.String("3"), ReceiptHandle: sdkaws.String("rh-3")},
	}}
	q := &SQSQueue{client: api, queueURL: "https://sqs.local/ledger-retry", logger: zap.NewNop()}

	var seen []string
	err := q.PollOnce(context.Background(), func(_ context.Context, body string) error {
		seen = append(seen, body)
		if body == "retry" {
			return errors.New("ledger still down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "retry"}, seen)
	assert.Equal(t, []string{"rh-1"}, api.deleted)
}

func TestSendMessage(t *testing.T) {
	api := &fakeSQS{}
	q := &SQSQueue{client: api, queueURL: "https://sqs.local/ledger-retry", logger: zap.NewNop()}

	require.NoError(t, q.SendMessage(context.Background(), `{"payment_ref":"pay_1"}`))
	assert.Equal(t, []string{`{"payment_ref":"pay_1"}`}, api.sent)
}
