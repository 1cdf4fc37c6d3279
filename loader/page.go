package loader

import (
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/entity"
)

// The page builders turn a Result into view-data. Every failure is logged and
// replaced by an empty value, so a page always has something to render.

func BlocksPage(logger *zap.Logger, res Result[[]entity.Block]) entity.BlocksPage {
	if !res.OK() {
		logFailure(logger, "error fetching blocks", res.Err)
		return entity.BlocksPage{Blocks: []entity.Block{}}
	}

	if res.Value == nil {
		return entity.BlocksPage{Blocks: []entity.Block{}}
	}

	return entity.BlocksPage{Blocks: res.Value}
}

func TransactionPage(logger *zap.Logger, res Result[*entity.Transaction]) entity.TransactionPage {
	if !res.OK() {
		logFailure(logger, "error fetching transaction", res.Err)
		return entity.TransactionPage{Transaction: nil}
	}

	return entity.TransactionPage{Transaction: res.Value}
}

func EntryList(logger *zap.Logger, res Result[[]entity.Entry]) []entity.Entry {
	if !res.OK() {
		logFailure(logger, "error enumerating entries", res.Err)
		return []entity.Entry{}
	}

	return res.Value
}

func logFailure(logger *zap.Logger, msg string, err *LoadError) {
	fields := []zap.Field{
		zap.String("url", err.URL),
		zap.Stringer("reason", err.Reason),
		zap.Error(err),
	}

	if err.StatusCode != 0 {
		fields = append(fields, zap.Int("status", err.StatusCode))
	}

	logger.Error(msg, fields...)
}
