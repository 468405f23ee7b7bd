package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/jobs"
)

type stubClient struct {
	thresholds []int
	err        error
}

func (s *stubClient) EnqueueStockSweep(_ context.Context, threshold int) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.thresholds = append(s.thresholds, threshold)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault, Type: jobs.TaskStockSweep}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestSweepCommand(t *testing.T) {
	client := &stubClient{}
	c := NewJobsCLIWith(client, nil)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.Run(context.Background(), []string{"sweep", "-threshold", "3", "-json"}, stdout, stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, []int{3}, client.thresholds)
	assert.JSONEq(t, `{"id":"task-1","queue":"default","type":"inventory:stock_sweep"}`, stdout.String())

	client.err = errors.New("redis down")
	stderr.Reset()
	code = c.Run(context.Background(), []string{"sweep"}, stdout, stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "redis down")
}

func TestStatsCommand(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{info: &asynq.QueueInfo{Pending: 2, Retry: 1}})
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.Run(context.Background(), []string{"stats"}, stdout, stderr)
	require.Equal(t, 0, code)
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=1 archived=0\n", stdout.String())

	c = NewJobsCLIWith(nil, stubInspector{err: asynq.ErrQueueNotFound})
	stdout.Reset()
	require.Equal(t, 0, c.Run(context.Background(), []string{"stats", "-json"}, stdout, stderr))
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, stdout.String())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	c := NewJobsCLIWith(nil, nil)
	stderr := new(bytes.Buffer)
	assert.Equal(t, 2, c.Run(context.Background(), nil, nil, stderr))
	assert.Equal(t, 2, c.Run(context.Background(), []string{"purge"}, nil, stderr))
	assert.Equal(t, 1, c.Run(context.Background(), []string{"stats"}, nil, stderr))
}
