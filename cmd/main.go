package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/config"
	"github.com/soyart/explorer-web/loader"
	"github.com/soyart/explorer-web/nodefetch"
	"github.com/soyart/explorer-web/prefs"
	"github.com/soyart/explorer-web/rdb"
)

const defaultConfigFile = "./config/config.yaml"

// app holds everything a command needs, built once in PersistentPreRunE.
type app struct {
	conf   *config.Config
	logger *zap.Logger
	prefs  *prefs.Preferences
	loader *loader.Loader

	closers []func() error
	closed  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI().execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	conf, err := config.From(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", configFile)
	}

	logger, err := zap.NewProduction(zap.Fields(zap.String("serviceLabel", conf.Label), zap.String("apiSource", conf.APISource.String())))
	if err != nil {
		return nil, errors.Wrap(err, "failed to init logger")
	}

	confJson, err := json.Marshal(conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to json marshal conf")
	}

	logger.Info("config", zap.String("values", string(confJson)))

	a := &app{
		conf:   conf,
		logger: logger,
	}

	storage, err := a.openStorage(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.prefs, err = prefs.Load(ctx, logger, storage)
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "failed to load preferences")
	}

	client, err := nodefetch.NewClient(a.prefs.NodeAddress)
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "failed to create node-aware http client")
	}

	opts := []loader.LoaderOpt{
		loader.WithHTTPClient(client),
		loader.WithBase(loader.BaseFrom(conf)),
		loader.WithLogger(logger),
	}
	if !conf.OmitBlockCount {
		opts = append(opts, loader.WithBlockCount(a.prefs.NumberOfBlocks))
	}

	a.loader, err = loader.New(opts...)
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "failed to create loader")
	}

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (prefs.Storage, error) {
	switch a.conf.Storage {
	case config.StorageRedis:
		rdw, err := rdb.New(a.conf.RedisUrl, a.conf.Label, a.logger)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create new redis wrapper client on %s", a.conf.RedisUrl)
		}
		a.closers = append(a.closers, rdw.Close)

		if err := rdw.Ping(ctx); err != nil {
			return nil, err
		}

		a.logger.Info("created new redis client wrapper", zap.String("url", a.conf.RedisUrl))
		return rdw, nil

	case config.StorageMemory:
		a.logger.Warn("preferences will not outlive this process")
		return prefs.NewMemStorage(), nil

	default:
		fs, err := prefs.OpenFileStorage(a.conf.PrefsFile)
		if err != nil {
			return nil, err
		}

		a.logger.Info("opened preferences file", zap.String("path", fs.Path()))
		return fs, nil
	}
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true

	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}

	_ = a.logger.Sync()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
