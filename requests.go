package kwikpik

import (
	"net/http"
	"strings"

	"github.com/kwikpik/kwikpik-go/internal/config"
	"github.com/kwikpik/kwikpik-go/internal/schema"
	"github.com/kwikpik/kwikpik-go/internal/transport"
)

const defaultDescription = "no description"

// Requests covers the dispatch request lifecycle.
type Requests struct {
	agent *transport.Agent
	paths config.RequestPaths
}

// CreateDispatchRequest validates r, fills in defaults and returns the call
// that initializes it. The request is not broadcast to riders until confirmed.
func (rq *Requests) CreateDispatchRequest(r DispatchRequest) (*Sendable[InitRequestResponse], error) {
	if err := validateDispatch(r); err != nil {
		return nil, err
	}
	body := withDefaults(r)
	return newSendable[InitRequestResponse](rq.agent, http.MethodPost, rq.paths.Initialize, rq.paths.Initialize, body)
}

// CreateDispatchRequests is the legacy batch form of CreateDispatchRequest.
// More than one request goes to the batch endpoint wrapped as
// {"requests": [...]}; exactly one goes to the single endpoint as is.
func (rq *Requests) CreateDispatchRequests(rs []DispatchRequest) (*Sendable[InitRequestResults], error) {
	if len(rs) == 0 {
		return nil, argError("create dispatch requests", "invalid number of requests. must be > 0")
	}
	for _, r := range rs {
		if err := validateDispatch(r); err != nil {
			return nil, err
		}
	}

	body := make([]DispatchRequest, len(rs))
	for i, r := range rs {
		body[i] = withDefaults(r)
	}

	if len(body) == 1 {
		return newSendable[InitRequestResults](rq.agent, http.MethodPost, rq.paths.Initialize, rq.paths.Initialize, body[0])
	}
	return newSendable[InitRequestResults](rq.agent, http.MethodPost, rq.paths.InitializeBatch, rq.paths.InitializeBatch,
		struct {
			Requests []DispatchRequest `json:"requests"`
		}{Requests: body})
}

// ConfirmDispatchRequest broadcasts an initialized, paid-for request. The
// server rejects requests that were never paid for.
func (rq *Requests) ConfirmDispatchRequest(requestID string) (*Sendable[ConfirmRequestResponse], error) {
	if err := checkID("confirm dispatch request", requestID); err != nil {
		return nil, err
	}
	return newSendable[ConfirmRequestResponse](rq.agent, http.MethodPost, rq.paths.Confirm, rq.paths.Confirm, requestIDBody{requestID})
}

// ConfirmDispatchRequests is the legacy batch form of ConfirmDispatchRequest.
func (rq *Requests) ConfirmDispatchRequests(requestIDs []string) (*Sendable[ConfirmRequestResults], error) {
	const op = "confirm dispatch requests"
	if len(requestIDs) == 0 {
		return nil, argError(op, "invalid number of request IDs. must be > 0")
	}
	for _, id := range requestIDs {
		if err := checkID(op, id); err != nil {
			return nil, err
		}
	}

	if len(requestIDs) == 1 {
		return newSendable[ConfirmRequestResults](rq.agent, http.MethodPost, rq.paths.Confirm, rq.paths.Confirm, requestIDBody{requestIDs[0]})
	}
	ids := append([]string(nil), requestIDs...)
	return newSendable[ConfirmRequestResults](rq.agent, http.MethodPost, rq.paths.ConfirmBatch, rq.paths.ConfirmBatch,
		struct {
			RequestIDs []string `json:"requestIds"`
		}{RequestIDs: ids})
}

func (rq *Requests) GetSingleRequest(requestID string) (*Callable[SingleRequestResponse], error) {
	if err := checkID("get single request", requestID); err != nil {
		return nil, err
	}
	path := config.Expand(rq.paths.GetSingle, "id", requestID)
	return newCallable[SingleRequestResponse](rq.agent, http.MethodGet, path, rq.paths.GetSingle)
}

// UpdateRequest sends only the fields set in fields. The server rejects
// updates to confirmed requests and to requests the caller does not own.
func (rq *Requests) UpdateRequest(requestID string, fields RequestUpdate) (*Sendable[UpdateRequestResponse], error) {
	if err := checkID("update request", requestID); err != nil {
		return nil, err
	}
	msgs, err := schema.RequestUpdate.ValidateValue(fields)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}
	path := config.Expand(rq.paths.UpdateSingle, "id", requestID)
	return newSendable[UpdateRequestResponse](rq.agent, http.MethodPatch, path, rq.paths.UpdateSingle, fields)
}

// DeleteRequest cancels a request the caller created and has not confirmed.
func (rq *Requests) DeleteRequest(requestID string) (*Sendable[DeleteRequestResponse], error) {
	if err := checkID("delete request", requestID); err != nil {
		return nil, err
	}
	return newSendable[DeleteRequestResponse](rq.agent, http.MethodDelete, rq.paths.DeleteSingle, rq.paths.DeleteSingle, requestIDBody{requestID})
}

type requestIDBody struct {
	RequestID string `json:"requestId"`
}

func checkID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return argError(op, "request id must be a non-empty string")
	}
	return nil
}

func validateDispatch(r DispatchRequest) error {
	msgs, err := schema.DispatchRequest.ValidateValue(r)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// withDefaults returns a copy of r with absent optional fields filled in.
func withDefaults(r DispatchRequest) DispatchRequest {
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if r.Description == "" {
		r.Description = defaultDescription
	}
	return r
}
