package prefs

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	KeyNodeAddress    = "nodeAddress"
	KeyNumberOfBlocks = "numberOfBlocks"

	DefaultNumberOfBlocks = 10
)

// Preferences is the user-configurable state shared by the fetch wrapper,
// the loaders and the page-data host.
type Preferences struct {
	// Empty means the explorer API's own default node.
	NodeAddress    *Pref[string]
	NumberOfBlocks *Pref[int]
}

type Snapshot struct {
	NodeAddress    string `json:"nodeAddress"`
	NumberOfBlocks int    `json:"numberOfBlocks"`
}

func Load(ctx context.Context, logger *zap.Logger, storage Storage) (*Preferences, error) {
	nodeAddress, err := NewPref(ctx, logger, storage, KeyNodeAddress, "", StringCodec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load node address")
	}

	numberOfBlocks, err := NewPref(
		ctx,
		logger,
		storage,
		KeyNumberOfBlocks,
		DefaultNumberOfBlocks,
		IntCodec,
		WithValidator(func(n int) bool { return n > 0 }),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load number of blocks")
	}

	return &Preferences{
		NodeAddress:    nodeAddress,
		NumberOfBlocks: numberOfBlocks,
	}, nil
}

func (p *Preferences) Snapshot() Snapshot {
	return Snapshot{
		NodeAddress:    p.NodeAddress.Get(),
		NumberOfBlocks: p.NumberOfBlocks.Get(),
	}
}

// Update applies the non-nil fields, node address first. If storing the
// block count fails, the previous node address is restored.
func (p *Preferences) Update(ctx context.Context, nodeAddress *string, numberOfBlocks *int) error {
	if numberOfBlocks != nil && *numberOfBlocks <= 0 {
		return errors.Wrapf(ErrInvalidValue, "%s must be positive, got %d", KeyNumberOfBlocks, *numberOfBlocks)
	}

	prevAddress := p.NodeAddress.Get()

	if nodeAddress != nil {
		if err := p.NodeAddress.Set(ctx, *nodeAddress); err != nil {
			return err
		}
	}

	if numberOfBlocks != nil {
		if err := p.NumberOfBlocks.Set(ctx, *numberOfBlocks); err != nil {
			if nodeAddress == nil || *nodeAddress == prevAddress {
				return err
			}

			if rollbackErr := p.NodeAddress.Set(ctx, prevAddress); rollbackErr != nil {
				return errors.Wrapf(err, "%s left at %q (rollback failed: %v)", KeyNodeAddress, *nodeAddress, rollbackErr)
			}

			return err
		}
	}

	return nil
}
