package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Environment selects which Kwik-Pik deployment a client talks to.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

// ParseEnvironment normalizes an environment name. Empty means prod.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case "":
		return EnvProd, nil
	case EnvDev, EnvProd:
		return env, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want dev or prod)", s)
	}
}

// AccountPaths are the account endpoints.
type AccountPaths struct {
	Authenticate  string
	Wallet        string
	PayForRequest string
	Requests      string // :userId
}

// RequestPaths are the dispatch request endpoints.
type RequestPaths struct {
	Initialize      string
	InitializeBatch string
	Confirm         string
	ConfirmBatch    string
	GetSingle       string // :id
	UpdateSingle    string // :id
	DeleteSingle    string
}

// Endpoints is the static table of base URLs and path templates. It is passed
// to each client by value so clients with different tables can coexist.
type Endpoints struct {
	BaseURLs map[Environment]string
	Account  AccountPaths
	Requests RequestPaths
}

// Default returns a fresh copy of the production endpoint table.
func Default() Endpoints {
	return Endpoints{
		BaseURLs: map[Environment]string{
			EnvDev:  "https://dev-api.kwikpik.io/api/v1",
			EnvProd: "https://api.kwikpik.io/api/v1",
		},
		Account: AccountPaths{
			Authenticate:  "/business/authenticate",
			Wallet:        "/business/wallet",
			PayForRequest: "/business/wallet/pay",
			Requests:      "/requests/user/:userId",
		},
		Requests: RequestPaths{
			Initialize:      "/requests/init",
			InitializeBatch: "/requests/init/batch",
			Confirm:         "/requests/confirm",
			ConfirmBatch:    "/requests/confirm/batch",
			GetSingle:       "/requests/:id",
			UpdateSingle:    "/requests/:id",
			DeleteSingle:    "/requests",
		},
	}
}

// BaseURL returns the base URL registered for env.
func (e Endpoints) BaseURL(env Environment) (string, error) {
	base, ok := e.BaseURLs[env]
	if !ok || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("no base url configured for environment %q", env)
	}
	return base, nil
}

// WithBaseURL returns a copy of e whose env entry points at base.
func (e Endpoints) WithBaseURL(env Environment, base string) Endpoints {
	urls := make(map[Environment]string, len(e.BaseURLs)+1)
	for k, v := range e.BaseURLs {
		urls[k] = v
	}
	urls[env] = base
	e.BaseURLs = urls
	return e
}

// Expand replaces the first ":placeholder" segment of template with the
// path-escaped value.
func Expand(template, placeholder, value string) string {
	return strings.Replace(template, ":"+placeholder, url.PathEscape(value), 1)
}
