package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/internal/inventory"
	jobmetrics "github.com/scanix-pos/scanix/internal/jobs"
	"github.com/scanix-pos/scanix/internal/tickets"
)

type fakeEnqueuer struct {
	payloads []LowStockPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueLowStock(_ context.Context, payload LowStockPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestNotifierTicketConfirmed(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewLowStockNotifier(enq, 5, nil)

	err := notifier.HandleTicketConfirmed(context.Background(), tickets.ConfirmedEvent{
		Ticket: tickets.Ticket{ID: "VTA-1"},
		Stock: []tickets.StockAfterSale{
			{ProductID: "p-aol", SKU: "AOL-500", WarehouseID: "wh-central", Remaining: 33},
			{ProductID: "p-arr", SKU: "ARR-1000", WarehouseID: "wh-central", Remaining: 5},
			{ProductID: "p-pas", SKU: "PAS-500", WarehouseID: "wh-central", Remaining: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, enq.payloads, 2)
	assert.Equal(t, LowStockPayload{TicketID: "VTA-1", WarehouseID: "wh-central", ProductID: "p-arr", SKU: "ARR-1000", Remaining: 5}, enq.payloads[0])
	assert.Equal(t, "PAS-500", enq.payloads[1].SKU)
}

func TestNotifierAdjustment(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewLowStockNotifier(enq, 5, nil)
	ctx := context.Background()

	require.NoError(t, notifier.HandleAdjustmentPosted(ctx, inventory.AdjustmentPostedEvent{Type: inventory.MovementIn, NewQty: 1}))
	require.NoError(t, notifier.HandleAdjustmentPosted(ctx, inventory.AdjustmentPostedEvent{Type: inventory.MovementOut, NewQty: 6}))
	require.Empty(t, enq.payloads)

	require.NoError(t, notifier.HandleAdjustmentPosted(ctx, inventory.AdjustmentPostedEvent{
		MovementID: "m-1", Type: inventory.MovementOut, NewQty: 2, SKU: "AOL-500", ProductID: "p-aol", WarehouseID: "wh-norte",
	}))
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, "m-1", enq.payloads[0].MovementID)

	enq.err = errors.New("redis down")
	err := notifier.HandleAdjustmentPosted(ctx, inventory.AdjustmentPostedEvent{Type: inventory.MovementOut, NewQty: 0})
	require.EqualError(t, err, "redis down")
}

type fakeStock struct {
	levels []inventory.StockLevel
}

func (f fakeStock) LowStock(_ context.Context, threshold int) ([]inventory.StockLevel, error) {
	var out []inventory.StockLevel
	for _, lvl := range f.levels {
		if lvl.Quantity <= threshold {
			out = append(out, lvl)
		}
	}
	return out, nil
}

func TestLowStockHandler(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	handler := NewLowStockHandler(fakeStock{levels: []inventory.StockLevel{
		{ProductID: "p-arr", WarehouseID: "wh-central", SKU: "ARR-1000", Quantity: 2},
		{ProductID: "p-aol", WarehouseID: "wh-central", SKU: "AOL-500", Quantity: 40},
	}}, nil, metrics)
	ctx := context.Background()
	require.Len(t, handler.Handlers(), 2)

	task, err := NewLowStockTask(LowStockPayload{TicketID: "VTA-1", WarehouseID: "wh-central", SKU: "ARR-1000", Remaining: 2})
	require.NoError(t, err)
	require.Equal(t, TaskLowStock, task.Type())
	require.NoError(t, handler.HandleLowStock(ctx, task))

	err = handler.HandleLowStock(ctx, asynq.NewTask(TaskLowStock, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	sweep, err := NewStockSweepTask(5)
	require.NoError(t, err)
	var payload StockSweepPayload
	require.NoError(t, json.Unmarshal(sweep.Payload(), &payload))
	require.Equal(t, 5, payload.Threshold)
	require.JSONEq(t, `{"threshold":5}`, string(sweep.Payload()))
	require.NoError(t, handler.HandleStockSweep(ctx, sweep))

	noReader := NewLowStockHandler(nil, nil, nil)
	require.ErrorIs(t, noReader.HandleStockSweep(ctx, sweep), asynq.SkipRetry)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthHandler(t *testing.T) {
	cases := map[string]struct {
		inspector QueueInspector
		status    int
		body      string
	}{
		"no inspector": {nil, http.StatusOK, `"pending":0`},
		"queue info":   {fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1}}, http.StatusOK, `"pending":3`},
		"not created":  {fakeInspector{err: asynq.ErrQueueNotFound}, http.StatusOK, `"queue":"default"`},
		"redis down":   {fakeInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, `queue unavailable`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}
