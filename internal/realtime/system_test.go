package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
	"symgraph/internal/engine/inference"
	"symgraph/internal/engine/query"
)

func newTestSystem(t *testing.T, cfg Config) (*System, *graph.MemoryStore) {
	t.Helper()
	store := graph.NewMemoryStore()
	n := graph.Node{
		Address:  address.Create("p", "a.go", address.KindFunction, "fn"),
		Project:  "p",
		FilePath: "a.go",
		Kind:     address.KindFunction,
		Name:     "fn",
	}
	require.NoError(t, store.PutNode(n))

	engine := query.New(store, inference.NewEngine(store), query.Options{})
	return NewSystem(store, engine, cfg), store
}

func TestRegisterQueryExecutesImmediately(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})

	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "client-1", "graph")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	q, ok := sys.GetQuery(id)
	require.True(t, ok)
	assert.True(t, q.IsActive)
	assert.Equal(t, query.DialectSQL, q.Dialect)
	require.NotNil(t, q.LastResult)
	assert.Equal(t, 1, q.LastResult.Total)
}

func TestRegisterQueryFailureStoredInactive(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})

	id, err := sys.RegisterQuery(context.Background(), "SELECT nonsense FROM", "", "client-1", "graph")
	require.Error(t, err)
	require.NotEmpty(t, id, "query id is valid even when execution failed")

	q, ok := sys.GetQuery(id)
	require.True(t, ok)
	assert.False(t, q.IsActive)
	assert.NotEmpty(t, q.Err)
}

func TestSubscribeUnknownQuery(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	_, err := sys.SubscribeToQuery("missing", "client-1", EventData, func(Event) {})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQueryNotFound))
}

func TestSubscribeInvalidEventType(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)

	_, err = sys.SubscribeToQuery(id, "c", EventType("push"), func(Event) {})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestNotifyDataChangeOrdering(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(label string) func(Event) {
		return func(Event) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}
	}

	_, err = sys.SubscribeToQuery(id, "c", EventData, record("data"))
	require.NoError(t, err)
	_, err = sys.SubscribeToQuery(id, "c", EventComplete, record("complete"))
	require.NoError(t, err)

	sys.NotifyDataChange(context.Background(), ChangeEvent{
		Type: ChangeInsert, Table: "nodes", Timestamp: time.Now(),
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"data", "complete"}, order, "data subscribers fire before complete")
}

func TestNotifyDataChangeFailureIsolation(t *testing.T) {
	sys, store := newTestSystem(t, Config{})

	good, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)

	// A query over a root that will disappear keeps working via the plan,
	// so provoke failure with a traverse rooted at a node we remove.
	bad, err := sys.RegisterQuery(context.Background(), "dependencies of fn", "", "c", "graph")
	require.NoError(t, err)

	var badErrs []string
	_, err = sys.SubscribeToQuery(bad, "c", EventError, func(ev Event) {
		badErrs = append(badErrs, ev.Err)
	})
	require.NoError(t, err)

	// Replace the file with an empty batch so "fn" no longer exists.
	require.NoError(t, store.ApplyBatch(graph.Batch{Project: "p", FilePath: "a.go"}))

	sys.NotifyDataChange(context.Background(), ChangeEvent{Type: ChangeDelete, Table: "nodes", Timestamp: time.Now()})

	q, ok := sys.GetQuery(bad)
	require.True(t, ok)
	assert.False(t, q.IsActive)
	assert.NotEmpty(t, q.Err)
	assert.NotEmpty(t, badErrs)

	q, ok = sys.GetQuery(good)
	require.True(t, ok)
	assert.True(t, q.IsActive, "unrelated query stays active")
}

func TestConnectionCapHardReject(t *testing.T) {
	sys, _ := newTestSystem(t, Config{MaxConnections: 2})

	require.NoError(t, sys.Connect("a"))
	require.NoError(t, sys.Connect("b"))

	err := sys.Connect("c")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConnectionLimit))

	// Reconnecting an admitted client is idempotent, not a second slot.
	require.NoError(t, sys.Connect("a"))
}

func TestDisconnectCleansUp(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	require.NoError(t, sys.Connect("c"))

	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)
	subID, err := sys.SubscribeToQuery(id, "c", EventData, func(Event) {})
	require.NoError(t, err)

	sys.Disconnect("c")

	q, ok := sys.GetQuery(id)
	require.True(t, ok)
	assert.False(t, q.IsActive)
	assert.True(t, errors.IsCode(sys.UnsubscribeFromQuery(subID), errors.CodeSubscriptionMissing))

	stats := sys.Stats()
	assert.Zero(t, stats.ActiveConnections)
	assert.Zero(t, stats.ActiveSubscriptions)
	assert.Zero(t, stats.ActiveQueries)
}

func TestTickRefreshesStaleQueries(t *testing.T) {
	sys, _ := newTestSystem(t, Config{PollInterval: time.Millisecond, QueryTimeout: time.Hour})

	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)
	before, _ := sys.GetQuery(id)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, sys.Tick(context.Background()))

	after, ok := sys.GetQuery(id)
	require.True(t, ok)
	assert.True(t, after.LastExecuted.After(before.LastExecuted))
	assert.True(t, after.IsActive)
}

func TestTickDeactivatesTimedOutQuery(t *testing.T) {
	sys, _ := newTestSystem(t, Config{PollInterval: time.Millisecond, QueryTimeout: 2 * time.Millisecond})

	id, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)

	var events []Event
	_, err = sys.SubscribeToQuery(id, "c", EventError, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	sys.Tick(context.Background())

	q, ok := sys.GetQuery(id)
	require.True(t, ok)
	assert.False(t, q.IsActive)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Err, string(errors.CodeQueryTimeout))

	// Deactivation is sticky; further ticks do nothing.
	assert.Zero(t, sys.Tick(context.Background()))
}

func TestTickParallelPool(t *testing.T) {
	sys, _ := newTestSystem(t, Config{PollInterval: time.Millisecond, QueryTimeout: time.Hour, MaxConcurrency: 4})

	for i := 0; i < 8; i++ {
		_, err := sys.RegisterQuery(context.Background(),
			fmt.Sprintf("SELECT nodes LIMIT %d", i+1), "", "c", "graph")
		require.NoError(t, err)
	}

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 8, sys.Tick(context.Background()))
}

func TestStatsByType(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	_, err := sys.RegisterQuery(context.Background(), "SELECT nodes", "", "c", "graph")
	require.NoError(t, err)
	_, err = sys.RegisterQuery(context.Background(), "find all functions", "", "c", "graph")
	require.NoError(t, err)

	stats := sys.Stats()
	assert.Equal(t, 2, stats.ActiveQueries)
	assert.Equal(t, 1, stats.QueriesByType[string(query.DialectSQL)])
	assert.Equal(t, 1, stats.QueriesByType[string(query.DialectNatural)])
}

func TestHandleRequestEnvelope(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	ctx := context.Background()

	var pushes []Response
	push := func(r Response) { pushes = append(pushes, r) }

	resp := sys.HandleRequest(ctx, "c", Request{Type: "registerQuery", Query: "SELECT nodes"}, push)
	require.Equal(t, "queryRegistered", resp.Type)
	queryID := resp.QueryID

	resp = sys.HandleRequest(ctx, "c", Request{Type: "subscribe", QueryID: queryID, EventType: "data"}, push)
	require.Equal(t, "subscribed", resp.Type)
	subID := resp.SubscriptionID

	sys.NotifyDataChange(ctx, ChangeEvent{Type: ChangeUpdate, Table: "nodes", Timestamp: time.Now()})
	require.Len(t, pushes, 1)
	assert.Equal(t, "queryUpdate", pushes[0].Type)
	assert.Equal(t, queryID, pushes[0].QueryID)
	assert.Equal(t, "data", pushes[0].EventType)
	require.NotNil(t, pushes[0].Data)

	resp = sys.HandleRequest(ctx, "c", Request{Type: "unsubscribe", SubscriptionID: subID}, push)
	assert.Equal(t, "unsubscribed", resp.Type)

	resp = sys.HandleRequest(ctx, "c", Request{Type: "deactivateQuery", QueryID: queryID}, push)
	assert.Equal(t, "queryDeactivated", resp.Type)

	resp = sys.HandleRequest(ctx, "c", Request{Type: "selfDestruct"}, push)
	assert.Equal(t, "error", resp.Type)

	resp = sys.HandleRequest(ctx, "c", Request{Type: "registerQuery", Query: "SELECT gibberish WHERE"}, push)
	assert.Equal(t, "error", resp.Type)
	assert.NotEmpty(t, resp.Message)
}

func TestHandleRequestWireDialectNames(t *testing.T) {
	sys, _ := newTestSystem(t, Config{})
	ctx := context.Background()
	push := func(Response) {}

	tests := []struct {
		queryType string
		text      string
		want      query.Dialect
	}{
		{"SQL", "SELECT nodes", query.DialectSQL},
		{"GraphQL", `{ nodes(type: "Function") { address } }`, query.DialectGraphQL},
		{"NaturalLanguage", "find all functions", query.DialectNatural},
	}
	for _, tt := range tests {
		resp := sys.HandleRequest(ctx, "c", Request{
			Type: "registerQuery", Query: tt.text, QueryType: tt.queryType,
		}, push)
		require.Equal(t, "queryRegistered", resp.Type, "queryType %q", tt.queryType)

		q, ok := sys.GetQuery(resp.QueryID)
		require.True(t, ok)
		assert.Equal(t, tt.want, q.Dialect)
		assert.True(t, q.IsActive)
	}
}
