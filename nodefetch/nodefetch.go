package nodefetch

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// HeaderNodeAddress tells the explorer API which node to query.
const HeaderNodeAddress = "X-Node-Address"

// AddressReader yields the current node address, "" for the API default.
// *prefs.Pref[string] satisfies it.
type AddressReader interface {
	Get() string
}

type AddressFunc func() string

func (f AddressFunc) Get() string { return f() }

type contextKey struct{}

// WithAddress attaches an address to ctx that takes precedence over the
// AddressReader for requests made with ctx.
func WithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, contextKey{}, address)
}

func AddressFrom(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(contextKey{}).(string)
	return address, ok && address != ""
}

// Transport sets HeaderNodeAddress on every outgoing request when an address
// is configured. Requests are cloned before the header is added.
type Transport struct {
	Base    http.RoundTripper
	Address AddressReader
}

var _ http.RoundTripper = &Transport{}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	address := t.address(req.Context())
	if address == "" {
		return t.base().RoundTrip(req)
	}

	r := req.Clone(req.Context())
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(HeaderNodeAddress, address)

	return t.base().RoundTrip(r)
}

func (t *Transport) address(ctx context.Context) string {
	if address, ok := AddressFrom(ctx); ok {
		return address
	}

	if t.Address == nil {
		return ""
	}

	return t.Address.Get()
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}

	return t.Base
}

type ClientOpt func(*http.Client) error

func WithBaseTransport(rt http.RoundTripper) ClientOpt {
	return func(c *http.Client) error {
		if rt == nil {
			return errors.New("transport cannot be nil")
		}
		c.Transport.(*Transport).Base = rt
		return nil
	}
}

// NewClient returns a client whose requests carry the node address. No
// timeout is set; bound calls through the request context.
func NewClient(address AddressReader, opts ...ClientOpt) (*http.Client, error) {
	c := &http.Client{
		Transport: &Transport{Address: address},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}
