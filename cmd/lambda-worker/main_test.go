package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"persona-backend/internal/queue"
)

type stubProcessor struct{ err error }

func (s stubProcessor) Process(context.Context, queue.Message) error { return s.err }

func body(t *testing.T, id string) string {
	t.Helper()
	raw, err := queue.EncodeMessage(queue.Message{AnalysisID: id, Version: queue.MessageVersion})
	require.NoError(t, err)
	return string(raw)
}

func TestHandleRecordsReportsOnlyRetryableFailures(t *testing.T) {
	records := []events.SQSMessage{
		{MessageId: "ok", Body: body(t, "a1")},
		{MessageId: "garbage", Body: "{bad"},
	}
	resp := handleRecords(context.Background(), stubProcessor{}, records)
	require.Empty(t, resp.BatchItemFailures)

	resp = handleRecords(context.Background(), stubProcessor{err: errors.New("db down")}, records[:1])
	require.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "ok"}}, resp.BatchItemFailures)
}
