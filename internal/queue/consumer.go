// Package queue receives job dispatch messages from SQS and drives the
// ingest processor. Delivery semantics follow the queue, not the worker:
// a message is deleted only after the processor returns cleanly, so any
// crash or error surfaces as a redelivery after the visibility timeout.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ignite/contact-ingest/internal/metrics"
	"github.com/ignite/contact-ingest/internal/pkg/distlock"
)

// JobMessage is the queue payload that dispatches one ingestion job.
// Both fields are required; a message missing either is a poison pill.
type JobMessage struct {
	JobID *int    `json:"job_id"`
	S3Key *string `json:"s3_key"`
}

// JobProcessor runs the ingestion pipeline for one job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID int, objectKey string) error
}

// sqsAPI is the slice of the SQS client the consumer uses.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer long-polls one queue and hands each message to the processor.
type Consumer struct {
	client     sqsAPI
	queueURL   string
	processor  JobProcessor
	locks      *distlock.Factory
	collector  *metrics.Collector
	logger     zerolog.Logger
	maxBatch   int32
	waitTime   int32
	visibility int32
	retrySleep time.Duration
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewConsumer creates a queue consumer. maxBatch, waitSeconds,
// visibilitySeconds and retryDelaySeconds fall back to 1, 20, 300 and 5
// when non-positive. retryDelaySeconds is how long the loop sleeps after a
// failed receive before polling again.
func NewConsumer(client *sqs.Client, queueURL string, processor JobProcessor, locks *distlock.Factory, collector *metrics.Collector, logger zerolog.Logger, maxBatch, waitSeconds, visibilitySeconds, retryDelaySeconds int) *Consumer {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	if waitSeconds <= 0 {
		waitSeconds = 20
	}
	if visibilitySeconds <= 0 {
		visibilitySeconds = 300
	}
	if retryDelaySeconds <= 0 {
		retryDelaySeconds = 5
	}
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		processor:  processor,
		locks:      locks,
		collector:  collector,
		logger:     logger,
		maxBatch:   int32(maxBatch),
		waitTime:   int32(waitSeconds),
		visibility: int32(visibilitySeconds),
		retrySleep: time.Duration(retryDelaySeconds) * time.Second,
		done:       make(chan struct{}),
	}
}

// Start launches the receive loop in its own goroutine.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info().Str("queue_url", c.queueURL).Msg("Queue consumer started")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends the receive loop and waits for the in-flight message to
// finish.
func (c *Consumer) Stop() {
	close(c.done)
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.maxBatch,
			WaitTimeSeconds:     c.waitTime,
			VisibilityTimeout:   c.visibility,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Msg("Queue receive failed")
			time.Sleep(c.retrySleep)
			continue
		}

		for _, msg := range out.Messages {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg sqstypes.Message) {
	c.collector.MessagesReceived.Inc()
	log := c.logger.With().
		Str("message_id", aws.ToString(msg.MessageId)).
		Str("correlation_id", uuid.NewString()).
		Logger()

	var jm JobMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &jm); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed queue message")
		c.collector.PoisonMessages.Inc()
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}
	if jm.JobID == nil || jm.S3Key == nil {
		log.Warn().Str("body", aws.ToString(msg.Body)).Msg("Dropping queue message missing job_id or s3_key")
		c.collector.PoisonMessages.Inc()
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	jobID := *jm.JobID
	log = log.With().Int("job_id", jobID).Logger()

	lock := c.locks.ForJob(jobID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		// The staging writes are idempotent, so a broken lock backend
		// degrades to unlocked processing instead of stalling the queue.
		log.Warn().Err(err).Msg("Job lock unavailable, processing unlocked")
	} else if !acquired {
		log.Info().Msg("Job locked by another worker, leaving message for redelivery")
		c.collector.LockSkips.Inc()
		return
	} else {
		defer lock.Release(ctx)
	}

	c.collector.RecordJobStarted()
	start := time.Now()
	if err := c.processor.ProcessJob(ctx, jobID, *jm.S3Key); err != nil {
		c.collector.RecordJobFinished(metrics.OutcomeFailed, time.Since(start).Seconds())
		log.Error().Err(err).Msg("Job processing failed, message left for redelivery")
		return
	}
	c.collector.RecordJobFinished(metrics.OutcomeProcessed, time.Since(start).Seconds())

	c.deleteMessage(ctx, msg.ReceiptHandle)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Queue delete failed")
		return
	}
	c.collector.MessagesDeleted.Inc()
}
