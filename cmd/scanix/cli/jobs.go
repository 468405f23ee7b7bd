package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/scanix-pos/scanix/jobs"
)

// SweepEnqueuer submits stock sweeps to the queue.
type SweepEnqueuer interface {
	EnqueueStockSweep(ctx context.Context, threshold int) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    SweepEnqueuer
	inspector QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	c := NewJobsCLIWith(client, inspector)
	c.closers = []io.Closer{inspector, client}
	return c
}

// NewJobsCLIWith builds the helpers around existing queue handles.
func NewJobsCLIWith(client SweepEnqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// JobsOptions carries the parsed flags and output streams.
type JobsOptions struct {
	Threshold  int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// Run dispatches `jobs <sweep|stats> [flags]` and returns the exit code.
func (c *JobsCLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: scanix jobs <sweep|stats> [-threshold N] [-json]")
		return 2
	}
	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	threshold := fs.Int("threshold", 5, "remaining quantity at or below which stock is reported")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	opts := JobsOptions{Threshold: *threshold, JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr}
	switch args[0] {
	case "sweep":
		return c.SweepCommand(ctx, opts)
	case "stats":
		return c.StatsCommand(ctx, opts)
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown command %q\n", args[0])
		return 2
	}
}

// SweepCommand enqueues a stock sweep right away.
func (c *JobsCLI) SweepCommand(ctx context.Context, opts JobsOptions) int {
	if c == nil || c.client == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs sweep: client not configured")
		return 1
	}
	if opts.Threshold < 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs sweep: -threshold must not be negative")
		return 1
	}
	info, err := c.client.EnqueueStockSweep(ctx, opts.Threshold)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs sweep: enqueue: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type})
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
	return 0
}

// StatsCommand prints the default queue counters.
func (c *JobsCLI) StatsCommand(_ context.Context, opts JobsOptions) int {
	stats, err := c.InspectQueue()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

// InspectQueue reports the queue metrics for the default queue. A queue that
// has never seen a task reports zeros.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}
