package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/entity"
)

// CountReader yields the number of blocks to request.
// *prefs.Pref[int] satisfies it.
type CountReader interface {
	Get() int
}

// Loader fetches page data from the explorer API. Each call performs at
// most one request.
type Loader struct {
	client *http.Client
	base   Base
	count  CountReader
	logger *zap.Logger
}

type LoaderOpt func(*Loader) error

func WithHTTPClient(client *http.Client) LoaderOpt {
	return func(l *Loader) error {
		if client == nil {
			return errors.New("client cannot be nil")
		}
		l.client = client
		return nil
	}
}

func WithBase(base Base) LoaderOpt {
	return func(l *Loader) error {
		l.base = base
		return nil
	}
}

// WithBlockCount makes Blocks send number_of_blocks; without it the API's
// own default count is used.
func WithBlockCount(count CountReader) LoaderOpt {
	return func(l *Loader) error {
		l.count = count
		return nil
	}
}

func WithLogger(logger *zap.Logger) LoaderOpt {
	return func(l *Loader) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		l.logger = logger
		return nil
	}
}

func New(opts ...LoaderOpt) (*Loader, error) {
	l := &Loader{
		client: http.DefaultClient,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func (l *Loader) Logger() *zap.Logger {
	return l.logger
}

type blocksResponse struct {
	Blocks []entity.Block `json:"blocks"`
}

func (l *Loader) Blocks(ctx context.Context) Result[[]entity.Block] {
	target := l.base.Resolve(ctx) + "/blocks"
	if l.count != nil {
		target += "?" + url.Values{
			"number_of_blocks": {strconv.Itoa(l.count.Get())},
		}.Encode()
	}

	res := getJSON[blocksResponse](ctx, l.client, target)
	if !res.OK() {
		return fail[[]entity.Block](res.Err.Reason, res.Err.URL, res.Err.StatusCode, res.Err.Err)
	}

	blocks := res.Value.Blocks
	l.logger.Debug("loaded blocks", append([]zap.Field{zap.Int("len", len(blocks))}, blockSpan(blocks)...)...)

	return ok(blocks)
}

func (l *Loader) Transaction(ctx context.Context, hash string) Result[*entity.Transaction] {
	target := l.base.Resolve(ctx) + "/transaction/" + url.PathEscape(hash)

	res := getJSON[*entity.Transaction](ctx, l.client, target)
	if res.OK() {
		l.logger.Debug("loaded transaction", zap.String("hash", hash))
	}

	return res
}

// Entries enumerates one Entry per transaction across the full blocks
// listing, in listing order.
func (l *Loader) Entries(ctx context.Context) Result[[]entity.Entry] {
	target := l.base.Resolve(ctx) + "/blocks"

	res := getJSON[blocksResponse](ctx, l.client, target)
	if !res.OK() {
		return fail[[]entity.Entry](res.Err.Reason, res.Err.URL, res.Err.StatusCode, res.Err.Err)
	}

	entries := []entity.Entry{}
	for _, block := range res.Value.Blocks {
		for _, tx := range block.Transactions {
			if tx.IsNull() {
				continue
			}
			entries = append(entries, entity.Entry{Hash: tx.Hash})
		}
	}

	return ok(entries)
}

// getJSON sends a GET and decodes the body into T.
func getJSON[T any](ctx context.Context, client *http.Client, target string) Result[T] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail[T](ReasonNetwork, target, 0, errors.Wrap(err, "failed to build request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fail[T](ReasonNetwork, target, 0, errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail[T](ReasonStatus, target, resp.StatusCode, errors.Errorf("HTTP error! status: %d", resp.StatusCode))
	}

	var value T
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return fail[T](ReasonDecode, target, resp.StatusCode, errors.Wrap(err, "failed to decode response"))
	}

	return ok(value)
}

func blockSpan(blocks []entity.Block) []zap.Field {
	var fields []zap.Field

	if len(blocks) == 0 {
		return fields
	}

	if first, ok := blocks[0].Number(); ok {
		fields = append(fields, zap.String("first", first.String()))
	}

	if last, ok := blocks[len(blocks)-1].Number(); ok {
		fields = append(fields, zap.String("last", last.String()))
	}

	return fields
}
