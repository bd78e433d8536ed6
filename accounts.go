package kwikpik

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kwikpik/kwikpik-go/internal/config"
	"github.com/kwikpik/kwikpik-go/internal/transport"
)

// Accounts covers the authenticated business account and its wallet.
type Accounts struct {
	agent *transport.Agent
	paths config.AccountPaths
}

// Authenticate resolves to the caller's own business account.
func (a *Accounts) Authenticate() *Callable[Account] {
	return mustCallable[Account](a.agent, http.MethodGet, a.paths.Authenticate, a.paths.Authenticate)
}

func (a *Accounts) Wallet() *Callable[AccountWallet] {
	return mustCallable[AccountWallet](a.agent, http.MethodGet, a.paths.Wallet, a.paths.Wallet)
}

// PayForRequest pays for an initialized request from the wallet. Balance and
// amount checks happen on the server.
func (a *Accounts) PayForRequest(in PaymentInput) (*Sendable[Payment], error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, argError("pay for request", "requestId must be a non-empty string")
	}
	return newSendable[Payment](a.agent, http.MethodPost, a.paths.PayForRequest, a.paths.PayForRequest, in)
}

// GetAccountRequests authenticates to learn the account id, then returns the
// listing call for the given page (20 per page, server-side). Page 0 means 1.
// An authentication failure is returned unchanged.
func (a *Accounts) GetAccountRequests(ctx context.Context, page int) (*Callable[[]AccountRequest], error) {
	if page < 0 {
		return nil, argError("get account requests", "page must be >= 1, got %d", page)
	}
	if page == 0 {
		page = 1
	}

	account, err := a.Authenticate().Call(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{"page": []string{strconv.Itoa(page)}}
	path := config.Expand(a.paths.Requests, "userId", account.ID) + "?" + query.Encode()
	return newCallable[[]AccountRequest](a.agent, http.MethodGet, path, a.paths.Requests)
}
