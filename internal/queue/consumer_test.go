package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ignite/contact-ingest/internal/metrics"
	"github.com/ignite/contact-ingest/internal/pkg/distlock"
)

type fakeSQS struct {
	mu      sync.Mutex
	batches [][]sqstypes.Message
	deleted []string
	recvErr error
	onEmpty func()
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recvErr != nil {
		err := f.recvErr
		f.recvErr = nil
		return nil, err
	}
	if len(f.batches) == 0 {
		if f.onEmpty != nil {
			f.onEmpty()
		}
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type procCall struct {
	jobID int
	key   string
}

type procFake struct {
	mu    sync.Mutex
	calls []procCall
	err   error
}

func (p *procFake) ProcessJob(_ context.Context, jobID int, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, procCall{jobID: jobID, key: key})
	return p.err
}

func (p *procFake) callList() []procCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]procCall(nil), p.calls...)
}

func message(id, body, handle string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		Body:          aws.String(body),
		ReceiptHandle: aws.String(handle),
	}
}

// setupConsumer wires a consumer against the fake queue and a miniredis
// lock backend, then runs it until the fake queue drains.
func setupConsumer(t *testing.T, fake *fakeSQS, proc JobProcessor) (*Consumer, *metrics.Collector, *distlock.Factory) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		redisClient.Close()
		mr.Close()
	})

	collector := metrics.NewCollector(prometheus.NewRegistry())
	locks := distlock.NewFactory(redisClient, nil, time.Minute)
	c := &Consumer{
		client:     fake,
		queueURL:   "https://sqs.test/ingest",
		processor:  proc,
		locks:      locks,
		collector:  collector,
		logger:     zerolog.Nop(),
		maxBatch:   10,
		waitTime:   0,
		visibility: 300,
		retrySleep: time.Millisecond,
		done:       make(chan struct{}),
	}
	return c, collector, locks
}

func drain(c *Consumer, fake *fakeSQS) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.onEmpty = cancel

	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
}

func TestConsumer_ProcessesAndDeletes(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{
		{message("m1", `{"job_id": 42, "s3_key": "uploads/42.csv"}`, "rh-1")},
	}}
	proc := &procFake{}

	c, collector, _ := setupConsumer(t, fake, proc)
	drain(c, fake)

	calls := proc.callList()
	if len(calls) != 1 || calls[0].jobID != 42 || calls[0].key != "uploads/42.csv" {
		t.Fatalf("ProcessJob calls = %+v, want one call for job 42", calls)
	}
	if got := fake.deletedHandles(); len(got) != 1 || got[0] != "rh-1" {
		t.Errorf("Deleted handles = %v, want [rh-1]", got)
	}
	if got := testutil.ToFloat64(collector.JobsTotal.WithLabelValues(metrics.OutcomeProcessed)); got != 1 {
		t.Errorf("JobsTotal{processed} = %v, want 1", got)
	}
}

func TestConsumer_ProcessingFailureLeavesMessage(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{
		{message("m1", `{"job_id": 42, "s3_key": "uploads/42.csv"}`, "rh-1")},
	}}
	proc := &procFake{err: errors.New("database unavailable")}

	c, collector, _ := setupConsumer(t, fake, proc)
	drain(c, fake)

	if len(proc.callList()) != 1 {
		t.Fatalf("ProcessJob calls = %d, want 1", len(proc.callList()))
	}
	if got := fake.deletedHandles(); len(got) != 0 {
		t.Errorf("Deleted handles = %v, want none on processing failure", got)
	}
	if got := testutil.ToFloat64(collector.JobsTotal.WithLabelValues(metrics.OutcomeFailed)); got != 1 {
		t.Errorf("JobsTotal{failed} = %v, want 1", got)
	}
}

func TestConsumer_PoisonMessagesAreDeleted(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		message("m1", `this is not json`, "rh-1"),
		message("m2", `{"job_id": 7}`, "rh-2"),
		message("m3", `{"s3_key": "uploads/7.csv"}`, "rh-3"),
	}}}
	proc := &procFake{}

	c, collector, _ := setupConsumer(t, fake, proc)
	drain(c, fake)

	if len(proc.callList()) != 0 {
		t.Errorf("ProcessJob calls = %d, want 0 for poison messages", len(proc.callList()))
	}
	if got := fake.deletedHandles(); len(got) != 3 {
		t.Errorf("Deleted handles = %v, want all three poison pills removed", got)
	}
	if got := testutil.ToFloat64(collector.PoisonMessages); got != 3 {
		t.Errorf("PoisonMessages = %v, want 3", got)
	}
}

func TestConsumer_TransientReceiveErrorRetries(t *testing.T) {
	fake := &fakeSQS{
		recvErr: errors.New("throttled"),
		batches: [][]sqstypes.Message{
			{message("m1", `{"job_id": 9, "s3_key": "uploads/9.csv"}`, "rh-1")},
		},
	}
	proc := &procFake{}

	c, _, _ := setupConsumer(t, fake, proc)
	drain(c, fake)

	if len(proc.callList()) != 1 {
		t.Errorf("ProcessJob calls = %d, want 1 after receive retry", len(proc.callList()))
	}
}

func TestConsumer_SkipsLockedJob(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{
		{message("m1", `{"job_id": 42, "s3_key": "uploads/42.csv"}`, "rh-1")},
	}}
	proc := &procFake{}

	c, collector, locks := setupConsumer(t, fake, proc)

	// Another worker holds the job.
	held := locks.ForJob(42)
	if ok, err := held.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v, want lock held", ok, err)
	}

	drain(c, fake)

	if len(proc.callList()) != 0 {
		t.Errorf("ProcessJob calls = %d, want 0 while job is locked", len(proc.callList()))
	}
	if got := fake.deletedHandles(); len(got) != 0 {
		t.Errorf("Deleted handles = %v, want none so the queue redelivers", got)
	}
	if got := testutil.ToFloat64(collector.LockSkips); got != 1 {
		t.Errorf("LockSkips = %v, want 1", got)
	}
}
