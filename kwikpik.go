// Package kwikpik is a client for the Kwik-Pik delivery dispatch API.
//
// Every resource method returns a pending Callable or Sendable that records
// the method, path and body it will use. Nothing touches the network until
// Call or Send is invoked:
//
//	api, err := kwikpik.Initialize(apiKey, kwikpik.EnvProd)
//	if err != nil { ... }
//	req, err := api.Requests.CreateDispatchRequest(kwikpik.DispatchRequest{...})
//	if err != nil { ... } // argument or validation error, nothing was sent
//	created, err := req.Send(ctx)
//
// Errors from Call and Send are the HTTP client's own errors, or a
// *StatusError for non-2xx responses. Nothing is retried.
package kwikpik

import (
	"log/slog"
	"net/http"

	"github.com/kwikpik/kwikpik-go/internal/config"
	"github.com/kwikpik/kwikpik-go/internal/transport"
)

type Environment = config.Environment

const (
	EnvDev  = config.EnvDev
	EnvProd = config.EnvProd
)

// Endpoints is the table of base URLs and path templates a client uses.
type Endpoints = config.Endpoints

// DefaultEndpoints returns a fresh copy of the built-in endpoint table.
func DefaultEndpoints() Endpoints { return config.Default() }

// API groups the resource handles produced by Initialize.
type API struct {
	Accounts *Accounts
	Requests *Requests
}

type options struct {
	httpClient *http.Client
	endpoints  Endpoints
	baseURL    string
	logger     *slog.Logger
}

type Option func(*options)

// WithHTTPClient sets the client used for every call. Timeouts and
// cancellation policy belong on this client or on the call's context.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEndpoints replaces the endpoint table.
func WithEndpoints(e Endpoints) Option {
	return func(o *options) { o.endpoints = e }
}

// WithBaseURL overrides the base URL of the selected environment.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithLogger sets the logger for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Initialize builds the account and request resources for apiKey. An empty
// env means EnvProd. The key is not checked locally; a bad key surfaces as an
// authentication failure from the server.
func Initialize(apiKey string, env Environment, opts ...Option) (*API, error) {
	env, err := config.ParseEnvironment(string(env))
	if err != nil {
		return nil, argError("initialize", "%v", err)
	}

	o := options{endpoints: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL != "" {
		o.endpoints = o.endpoints.WithBaseURL(env, o.baseURL)
	}

	baseURL, err := o.endpoints.BaseURL(env)
	if err != nil {
		return nil, argError("initialize", "%v", err)
	}

	newAgent := func() *transport.Agent {
		return transport.New(transport.Options{
			APIKey:     apiKey,
			BaseURL:    baseURL,
			HTTPClient: o.httpClient,
			Logger:     o.logger,
		})
	}

	return &API{
		Accounts: &Accounts{agent: newAgent(), paths: o.endpoints.Account},
		Requests: &Requests{agent: newAgent(), paths: o.endpoints.Requests},
	}, nil
}

// MustInitialize is Initialize for callers with a fixed, known-good
// environment. It panics on error.
func MustInitialize(apiKey string, env Environment, opts ...Option) *API {
	api, err := Initialize(apiKey, env, opts...)
	if err != nil {
		panic(err)
	}
	return api
}
