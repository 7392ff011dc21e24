// Package realtime keeps registered queries live: it re-executes them when
// the graph changes or on a polling tick and pushes results to subscribers
// over transport-agnostic callbacks.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"symgraph/internal/core/errors"
	"symgraph/internal/engine/graph"
	"symgraph/internal/engine/query"
	"symgraph/internal/shared/observability"
)

// EventType selects which notifications a subscription receives.
type EventType string

const (
	EventData     EventType = "data"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

func (e EventType) valid() bool {
	return e == EventData || e == EventError || e == EventComplete
}

// ChangeType classifies a data change notification.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent describes one mutation of the underlying data.
type ChangeEvent struct {
	Type      ChangeType        `json:"type"`
	Table     string            `json:"table"`
	Record    map[string]string `json:"record,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Event is what a subscription callback receives.
type Event struct {
	QueryID string        `json:"queryId"`
	Type    EventType     `json:"eventType"`
	Result  *query.Result `json:"data,omitempty"`
	Err     string        `json:"error,omitempty"`
}

// Query is one registered live query.
type Query struct {
	ID           string
	Text         string
	Dialect      query.Dialect
	ClientID     string
	DataSource   string
	IsActive     bool
	LastExecuted time.Time
	LastResult   *query.Result
	Err          string
}

// Subscription binds a callback to one query's events of one type. It is
// owned by exactly one client and never outlives its query's system.
type Subscription struct {
	ID        string
	QueryID   string
	ClientID  string
	EventType EventType
	Callback  func(Event)
}

// Config bounds the system.
type Config struct {
	MaxConnections int
	PollInterval   time.Duration
	// QueryTimeout deactivates a query whose last execution is older than
	// this; the poller emits an error event instead of re-executing it.
	QueryTimeout time.Duration
	// MaxConcurrency bounds the poll tick's worker pool. One means
	// sequential evaluation.
	MaxConcurrency int
}

func (c *Config) applyDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Minute
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
}

// Stats is the system's public counters snapshot.
type Stats struct {
	ActiveQueries       int            `json:"activeQueries"`
	ActiveSubscriptions int            `json:"activeSubscriptions"`
	ActiveConnections   int            `json:"activeConnections"`
	QueriesByType       map[string]int `json:"queriesByType"`
}

// System owns all live-query state. Every instance is fully isolated; two
// systems over the same store do not see each other's queries.
type System struct {
	store  graph.Store
	engine *query.Engine
	cfg    Config

	// affected judges whether a change event invalidates a query.
	// The default says yes for every active query; a finer implementation
	// can be injected without touching notification plumbing.
	affected func(*Query, ChangeEvent) bool

	mu          sync.Mutex
	queries     map[string]*Query
	subs        map[string]*Subscription
	subsByQuery map[string]map[string]*Subscription
	clients     map[string]bool
	closed      bool
}

func NewSystem(store graph.Store, engine *query.Engine, cfg Config) *System {
	cfg.applyDefaults()
	return &System{
		store:       store,
		engine:      engine,
		cfg:         cfg,
		affected:    func(*Query, ChangeEvent) bool { return true },
		queries:     make(map[string]*Query),
		subs:        make(map[string]*Subscription),
		subsByQuery: make(map[string]map[string]*Subscription),
		clients:     make(map[string]bool),
	}
}

// Connect admits a client. Admission is a hard gate: at MaxConnections the
// client is rejected, never queued.
func (s *System) Connect(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[clientID] {
		return nil
	}
	if len(s.clients) >= s.cfg.MaxConnections {
		return errors.AddContext(
			errors.Newf(errors.CodeConnectionLimit, "connection limit %d reached", s.cfg.MaxConnections),
			errors.CtxClientID, clientID)
	}
	s.clients[clientID] = true
	observability.ActiveConnections.Set(float64(len(s.clients)))
	return nil
}

// Disconnect removes the client, deactivates its queries, and drops its
// subscriptions under one lock so no dangling subscription survives.
func (s *System) Disconnect(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, clientID)
	for _, q := range s.queries {
		if q.ClientID == clientID {
			q.IsActive = false
		}
	}
	for id, sub := range s.subs {
		if sub.ClientID == clientID {
			s.removeSubLocked(id)
		}
	}
	observability.ActiveConnections.Set(float64(len(s.clients)))
	observability.ActiveSubscriptions.Set(float64(len(s.subs)))
}

// RegisterQuery stores the query and executes it once immediately. On
// execution failure the query is kept, inactive, with the error recorded;
// the error is returned so transports can surface it, but the query ID is
// always valid.
func (s *System) RegisterQuery(ctx context.Context, text string, dialect query.Dialect, clientID, dataSource string) (string, error) {
	if dialect == "" {
		dialect = query.Detect(text)
	}
	dialect = query.Canonical(dialect)
	q := &Query{
		ID:         uuid.New().String(),
		Text:       text,
		Dialect:    dialect,
		ClientID:   clientID,
		DataSource: dataSource,
	}

	res, err := s.engine.ExecuteDialect(ctx, text, dialect)
	q.LastExecuted = time.Now()
	if err != nil {
		q.Err = err.Error()
	} else {
		q.IsActive = true
		q.LastResult = res
	}

	s.mu.Lock()
	s.queries[q.ID] = q
	s.mu.Unlock()

	if err != nil {
		return q.ID, errors.AddContext(err, errors.CtxQueryID, q.ID)
	}
	return q.ID, nil
}

// SubscribeToQuery attaches a callback to one event type of a query.
func (s *System) SubscribeToQuery(queryID, clientID string, eventType EventType, callback func(Event)) (string, error) {
	if !eventType.valid() {
		return "", errors.Newf(errors.CodeValidationError, "unknown event type %q", eventType)
	}
	if callback == nil {
		return "", errors.New(errors.CodeValidationError, "callback is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queries[queryID]; !ok {
		return "", errors.AddContext(
			errors.New(errors.CodeQueryNotFound, "query not found"),
			errors.CtxQueryID, queryID)
	}

	sub := &Subscription{
		ID:        uuid.New().String(),
		QueryID:   queryID,
		ClientID:  clientID,
		EventType: eventType,
		Callback:  callback,
	}
	s.subs[sub.ID] = sub
	if s.subsByQuery[queryID] == nil {
		s.subsByQuery[queryID] = make(map[string]*Subscription)
	}
	s.subsByQuery[queryID][sub.ID] = sub
	observability.ActiveSubscriptions.Set(float64(len(s.subs)))
	return sub.ID, nil
}

func (s *System) UnsubscribeFromQuery(subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[subscriptionID]; !ok {
		return errors.New(errors.CodeSubscriptionMissing, "subscription not found")
	}
	s.removeSubLocked(subscriptionID)
	observability.ActiveSubscriptions.Set(float64(len(s.subs)))
	return nil
}

func (s *System) removeSubLocked(subscriptionID string) {
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return
	}
	delete(s.subs, subscriptionID)
	if m := s.subsByQuery[sub.QueryID]; m != nil {
		delete(m, subscriptionID)
		if len(m) == 0 {
			delete(s.subsByQuery, sub.QueryID)
		}
	}
}

// DeactivateQuery turns a query off. Deactivation is sticky; the query stays
// registered so its last result and error remain inspectable.
func (s *System) DeactivateQuery(queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[queryID]
	if !ok {
		return errors.AddContext(
			errors.New(errors.CodeQueryNotFound, "query not found"),
			errors.CtxQueryID, queryID)
	}
	q.IsActive = false
	return nil
}

// GetQuery returns a snapshot of the query's current state.
func (s *System) GetQuery(queryID string) (Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[queryID]
	if !ok {
		return Query{}, false
	}
	return *q, true
}

// NotifyDataChange re-evaluates every active query the change affects and
// pushes the refreshed result (or the new error) to its subscribers. For
// each query, all data subscribers are called before the complete event
// fires. A failing query records its error and goes inactive; other queries
// are untouched.
func (s *System) NotifyDataChange(ctx context.Context, event ChangeEvent) {
	// The change may not have flowed through the store's edge listeners
	// (node-only mutations do not), so drop cached results up front.
	if _, err := s.engine.ManageCache("clear"); err != nil {
		slog.Warn("cache clear failed", "error", err)
	}

	s.mu.Lock()
	var affected []*Query
	for _, q := range s.queries {
		if q.IsActive && s.affected(q, event) {
			affected = append(affected, q)
		}
	}
	s.mu.Unlock()

	for _, q := range affected {
		s.refresh(ctx, q)
	}
}

// refresh re-executes one query and notifies its subscribers. Callbacks run
// outside the system lock.
func (s *System) refresh(ctx context.Context, q *Query) {
	res, err := s.engine.ExecuteDialect(ctx, q.Text, q.Dialect)

	s.mu.Lock()
	q.LastExecuted = time.Now()
	if err != nil {
		q.Err = err.Error()
		q.IsActive = false
	} else {
		q.Err = ""
		q.LastResult = res
	}
	subs := s.subsForQueryLocked(q.ID)
	s.mu.Unlock()

	if err != nil {
		s.dispatch(subs, Event{QueryID: q.ID, Type: EventError, Err: err.Error()})
		slog.Warn("live query failed", "query_id", q.ID, "error", err)
		return
	}

	s.dispatch(subs, Event{QueryID: q.ID, Type: EventData, Result: res})
	s.dispatch(subs, Event{QueryID: q.ID, Type: EventComplete})
}

func (s *System) subsForQueryLocked(queryID string) []*Subscription {
	m := s.subsByQuery[queryID]
	out := make([]*Subscription, 0, len(m))
	for _, sub := range m {
		out = append(out, sub)
	}
	return out
}

func (s *System) dispatch(subs []*Subscription, ev Event) {
	for _, sub := range subs {
		if sub.EventType != ev.Type {
			continue
		}
		sub.Callback(ev)
		observability.NotificationsTotal.WithLabelValues(string(ev.Type)).Inc()
	}
}

// Stats snapshots the public counters.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string]int)
	active := 0
	for _, q := range s.queries {
		if q.IsActive {
			active++
			byType[string(q.Dialect)]++
		}
	}
	return Stats{
		ActiveQueries:       active,
		ActiveSubscriptions: len(s.subs),
		ActiveConnections:   len(s.clients),
		QueriesByType:       byType,
	}
}

// Close drops all state. Subsequent polling ticks become no-ops.
func (s *System) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queries = make(map[string]*Query)
	s.subs = make(map[string]*Subscription)
	s.subsByQuery = make(map[string]map[string]*Subscription)
	s.clients = make(map[string]bool)
	observability.ActiveConnections.Set(0)
	observability.ActiveSubscriptions.Set(0)
}
