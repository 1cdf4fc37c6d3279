package loader

import (
	"context"
	"strings"

	"github.com/soyart/explorer-web/config"
)

type originKey struct{}

// WithOrigin records the scheme://host of the inbound request being served,
// used by config.APISourceSameOrigin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func OriginFrom(ctx context.Context) (string, bool) {
	origin, ok := ctx.Value(originKey{}).(string)
	return origin, ok && origin != ""
}

// Base resolves the explorer API base URL for one request.
type Base struct {
	Source config.APISource
	URL    string
	// Path is joined to the request origin for config.APISourceSameOrigin.
	Path string
}

func BaseFrom(conf *config.Config) Base {
	return Base{
		Source: conf.APISource,
		URL:    conf.APIUrl,
		Path:   conf.APIPath,
	}
}

func (b Base) Resolve(ctx context.Context) string {
	var base string

	switch b.Source {
	case config.APISourceExternal:
		base = b.URL

	case config.APISourceSameOrigin:
		origin, ok := OriginFrom(ctx)
		if !ok {
			// Outside a request there is no origin
			base = config.DefaultAPIUrl
			break
		}

		path := strings.Trim(b.Path, "/")
		if path == "" {
			path = strings.Trim(config.DefaultAPIPath, "/")
		}
		base = strings.TrimRight(origin, "/") + "/" + path

	default:
		base = config.DefaultAPIUrl
	}

	return strings.TrimRight(base, "/")
}
