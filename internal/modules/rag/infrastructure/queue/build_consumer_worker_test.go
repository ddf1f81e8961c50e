package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ReqGraph/internal/modules/rag/infrastructure/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRunner struct {
	jobs []BuildJob
	err  error
}

func (r *captureRunner) Process(_ context.Context, job BuildJob) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func TestBuildConsumerWorker_Handle(t *testing.T) {
	runner := &captureRunner{}
	w := NewBuildConsumerWorker(nil, runner)

	payload, err := json.Marshal(BuildJob{DocID: "doc-1", Filename: "spec.pdf", Path: "uploads/doc-1.pdf"})
	require.NoError(t, err)

	err = w.Handle(context.Background(), mq.Event{PartitionKey: "doc-1", Payload: payload})
	require.NoError(t, err)
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, "doc-1", runner.jobs[0].DocID)
	assert.Equal(t, "spec.pdf", runner.jobs[0].Filename)
}

func TestBuildConsumerWorker_Handle_BadPayloadDropped(t *testing.T) {
	runner := &captureRunner{}
	w := NewBuildConsumerWorker(nil, runner)

	assert.NoError(t, w.Handle(context.Background(), mq.Event{Payload: []byte("{not json")}))
	assert.NoError(t, w.Handle(context.Background(), mq.Event{Payload: []byte(`{"doc_id":""}`)}))
	assert.Empty(t, runner.jobs)
}

func TestBuildConsumerWorker_Handle_RunnerErrorPropagates(t *testing.T) {
	runner := &captureRunner{err: errors.New("store unavailable")}
	w := NewBuildConsumerWorker(nil, runner)

	payload, _ := json.Marshal(BuildJob{DocID: "doc-2"})
	assert.Error(t, w.Handle(context.Background(), mq.Event{PartitionKey: "doc-2", Payload: payload}))
}
