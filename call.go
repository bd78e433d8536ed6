package kwikpik

import (
	"context"
	"net/http"

	"github.com/kwikpik/kwikpik-go/internal/transport"
)

// Callable is a pending body-less request (GET or DELETE). Building one
// performs no I/O; Call does.
type Callable[T any] struct {
	agent    *transport.Agent
	method   string
	path     string
	template string
}

func newCallable[T any](agent *transport.Agent, method, path, template string) (*Callable[T], error) {
	if method != http.MethodGet && method != http.MethodDelete {
		return nil, argError("callable", "method %s not allowed, want GET or DELETE", method)
	}
	return &Callable[T]{agent: agent, method: method, path: path, template: template}, nil
}

func mustCallable[T any](agent *transport.Agent, method, path, template string) *Callable[T] {
	c, err := newCallable[T](agent, method, path, template)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Callable[T]) Method() string { return c.method }

// Path is relative to the client's base URL and includes any query string.
func (c *Callable[T]) Path() string { return c.path }

// Call performs the request and returns the unwrapped result.
func (c *Callable[T]) Call(ctx context.Context) (T, error) {
	var out T
	err := c.agent.Do(ctx, transport.Request{Method: c.method, Path: c.path, Template: c.template}, &out)
	return out, err
}

// Sendable is a pending request with a JSON body (POST, PATCH or DELETE).
type Sendable[T any] struct {
	agent    *transport.Agent
	method   string
	path     string
	template string
	body     any
}

func newSendable[T any](agent *transport.Agent, method, path, template string, body any) (*Sendable[T], error) {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return nil, argError("sendable", "method %s not allowed, want POST, PATCH or DELETE", method)
	}
	return &Sendable[T]{agent: agent, method: method, path: path, template: template, body: body}, nil
}

func mustSendable[T any](agent *transport.Agent, method, path, template string, body any) *Sendable[T] {
	s, err := newSendable[T](agent, method, path, template, body)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sendable[T]) Method() string { return s.method }
func (s *Sendable[T]) Path() string   { return s.path }

// Body is the value that Send encodes as JSON.
func (s *Sendable[T]) Body() any { return s.body }

// Send performs the request and returns the unwrapped result.
func (s *Sendable[T]) Send(ctx context.Context) (T, error) {
	var out T
	err := s.agent.Do(ctx, transport.Request{Method: s.method, Path: s.path, Template: s.template, Body: s.body}, &out)
	return out, err
}
