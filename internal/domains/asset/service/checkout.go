package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Checkout reserves the asset for one author. The store transition is a
// compare-and-set, so of two concurrent callers exactly one wins.
func (s *assetService) Checkout(ctx context.Context, assetName string, req model.CheckoutRequest) (*model.CheckoutState, error) {
	assetName = model.NormalizeAssetName(assetName)
	req.PennKey = strings.TrimSpace(req.PennKey)
	if err := req.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageCheckout)
	}

	asset, err := s.getAsset(ctx, assetName, model.StageCheckout)
	if err != nil {
		return nil, err
	}
	if asset.CheckedOutBy != nil {
		return nil, s.alreadyCheckedOut(ctx, *asset.CheckedOutBy)
	}

	author, err := s.store.GetAuthor(ctx, req.PennKey)
	if err != nil {
		return nil, model.WithStage(err, model.StageCheckout)
	}

	won, err := s.store.Checkout(ctx, asset.ID, author.PennKey, s.now().UTC())
	if err != nil {
		return nil, model.WithStage(err, model.StageCheckout)
	}
	if !won {
		current, err := s.getAsset(ctx, assetName, model.StageCheckout)
		if err != nil {
			return nil, err
		}
		holder := author.PennKey
		if current.CheckedOutBy != nil {
			holder = *current.CheckedOutBy
		}
		return nil, s.alreadyCheckedOut(ctx, holder)
	}

	log.Info().Str("asset", assetName).Str("pennkey", author.PennKey).Msg("asset checked out")

	return s.checkoutState(ctx, assetName)
}

// Checkin releases the reservation. Only the holder may release it unless
// Force is set, in which case the caller must be a known author.
func (s *assetService) Checkin(ctx context.Context, assetName string, req model.CheckinRequest) (*model.CheckoutState, error) {
	assetName = model.NormalizeAssetName(assetName)
	req.PennKey = strings.TrimSpace(req.PennKey)
	if err := req.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageCheckout)
	}

	asset, err := s.getAsset(ctx, assetName, model.StageCheckout)
	if err != nil {
		return nil, err
	}
	if req.Force {
		if _, err := s.store.GetAuthor(ctx, req.PennKey); err != nil {
			return nil, model.WithStage(err, model.StageCheckout)
		}
	}

	released, err := s.store.Checkin(ctx, asset.ID, req.PennKey, req.Force)
	if err != nil {
		return nil, model.WithStage(err, model.StageCheckout)
	}
	if !released {
		current, err := s.getAsset(ctx, assetName, model.StageCheckout)
		if err != nil {
			return nil, err
		}
		if current.CheckedOutBy == nil {
			return nil, model.WithStage(model.NewNotCheckedOut(assetName), model.StageCheckout)
		}
		return nil, model.WithStage(model.NewCheckedOutByOther(assetName, *current.CheckedOutBy), model.StageCheckout)
	}

	if req.Force && asset.CheckedOutBy != nil && *asset.CheckedOutBy != req.PennKey {
		log.Warn().
			Str("asset", assetName).
			Str("pennkey", req.PennKey).
			Str("displaced", *asset.CheckedOutBy).
			Msg("checkout forcibly released")
	} else {
		log.Info().
			Str("asset", assetName).
			Str("pennkey", req.PennKey).
			Bool("force", req.Force).
			Msg("asset checked in")
	}

	return s.checkoutState(ctx, assetName)
}

func (s *assetService) alreadyCheckedOut(ctx context.Context, holder string) error {
	author, err := s.store.GetAuthor(ctx, holder)
	if err != nil {
		author = &model.Author{PennKey: holder}
	}
	return model.WithStage(model.NewAlreadyCheckedOut(author), model.StageCheckout)
}

func (s *assetService) checkoutState(ctx context.Context, assetName string) (*model.CheckoutState, error) {
	asset, err := s.getAsset(ctx, assetName, model.StageCheckout)
	if err != nil {
		return nil, err
	}
	return &model.CheckoutState{
		Name:         asset.Name,
		CheckedOutBy: asset.CheckedOutBy,
		CheckedOutAt: asset.CheckedOutAt,
		IsCheckedOut: asset.IsCheckedOut(),
	}, nil
}
