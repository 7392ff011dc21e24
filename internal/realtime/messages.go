package realtime

import (
	"context"
	"encoding/json"

	"symgraph/internal/engine/query"
)

// Request is the transport-agnostic inbound envelope.
type Request struct {
	Type           string `json:"type"`
	Query          string `json:"query,omitempty"`
	QueryType      string `json:"queryType,omitempty"`
	DataSource     string `json:"dataSource,omitempty"`
	QueryID        string `json:"queryId,omitempty"`
	EventType      string `json:"eventType,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// Response is the outbound envelope. Exactly one message goes out per
// request; pushes reuse the same shape with type "queryUpdate".
type Response struct {
	Type           string        `json:"type"`
	QueryID        string        `json:"queryId,omitempty"`
	SubscriptionID string        `json:"subscriptionId,omitempty"`
	EventType      string        `json:"eventType,omitempty"`
	Data           *query.Result `json:"data,omitempty"`
	Message        string        `json:"message,omitempty"`
}

func errorResponse(err error) Response {
	return Response{Type: "error", Message: err.Error()}
}

func pushResponse(ev Event) Response {
	return Response{
		Type:      "queryUpdate",
		QueryID:   ev.QueryID,
		EventType: string(ev.Type),
		Data:      ev.Result,
		Message:   ev.Err,
	}
}

// HandleRequest executes one envelope on behalf of clientID. push receives
// subscription events for subscriptions created here; it must be safe to
// call from other goroutines.
func (s *System) HandleRequest(ctx context.Context, clientID string, req Request, push func(Response)) Response {
	switch req.Type {
	case "registerQuery":
		id, err := s.RegisterQuery(ctx, req.Query, query.Dialect(req.QueryType), clientID, req.DataSource)
		if err != nil {
			return errorResponse(err)
		}
		return Response{Type: "queryRegistered", QueryID: id}

	case "subscribe":
		subID, err := s.SubscribeToQuery(req.QueryID, clientID, EventType(req.EventType), func(ev Event) {
			push(pushResponse(ev))
		})
		if err != nil {
			return errorResponse(err)
		}
		return Response{Type: "subscribed", SubscriptionID: subID}

	case "unsubscribe":
		if err := s.UnsubscribeFromQuery(req.SubscriptionID); err != nil {
			return errorResponse(err)
		}
		return Response{Type: "unsubscribed"}

	case "deactivateQuery":
		if err := s.DeactivateQuery(req.QueryID); err != nil {
			return errorResponse(err)
		}
		return Response{Type: "queryDeactivated"}

	default:
		return Response{Type: "error", Message: "unknown request type " + req.Type}
	}
}

// DecodeRequest parses one envelope. A malformed payload becomes an error
// response for the sender, never a dropped connection.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}
