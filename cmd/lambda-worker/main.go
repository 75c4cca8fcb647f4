package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"persona-backend/internal/bootstrap"
	"persona-backend/internal/shared/config"
	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/telemetry"
	"persona-backend/internal/workerproc"
)

var (
	initOnce  sync.Once
	initErr   error
	processor workerproc.Processor
)

func initApp(ctx context.Context) {
	cfg := config.Load()
	telemetry.Init(telemetry.Options{Level: cfg.LogLevel})
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{SkipRouter: true})
	if err != nil {
		initErr = err
		return
	}
	processor = app.AnalysesService
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(func() { initApp(context.WithoutCancel(ctx)) })
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleRecords(ctx, processor, event.Records), nil
}

// handleRecords reports failed records for redelivery. Malformed payloads are
// logged and dropped since retrying cannot fix them.
func handleRecords(ctx context.Context, proc workerproc.Processor, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncAnalysisJobsReceived()
		err := workerproc.HandleMessage(ctx, proc, record.Body)
		switch {
		case err == nil:
			metrics.IncAnalysisJobsCompleted()
		case workerproc.Unrecoverable(err):
			telemetry.Error("worker.analysis.unrecoverable", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		default:
			telemetry.Error("worker.analysis.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncAnalysisJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
