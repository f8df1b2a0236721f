package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_ConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "chair_01", "alice", at(0))

	const contenders = 16
	for i := 0; i < contenders; i++ {
		env.store.SeedAuthor(model.Author{PennKey: fmt.Sprintf("user%02d", i)})
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(pennKey string) {
			defer wg.Done()
			<-start
			_, err := env.svc.Checkout(context.Background(), "chair_01", model.CheckoutRequest{PennKey: pennKey})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, pennKey)
			case errors.Is(err, model.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(fmt.Sprintf("user%02d", i))
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, conflicts)

	asset, err := env.store.GetAssetByName(context.Background(), "chair_01")
	require.NoError(t, err)
	require.NotNil(t, asset.CheckedOutBy)
	assert.Equal(t, winners[0], *asset.CheckedOutBy)
}

func TestCheckout_AlreadyCheckedOutNamesHolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.SeedAuthor(model.Author{PennKey: "alice", FirstName: "Alice", LastName: "Liddell"})
	env.create(t, "chair_01", "alice", at(0))
	env.store.SeedAuthor(model.Author{PennKey: "bob"})

	state, err := env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "alice"})
	require.NoError(t, err)
	assert.True(t, state.IsCheckedOut)
	require.NotNil(t, state.CheckedOutAt)
	assert.True(t, env.svc.now().Equal(*state.CheckedOutAt))

	_, err = env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "bob"})
	require.Error(t, err)
	assert.Equal(t, model.CodeAlreadyCheckedOut, model.ToErrorCode(err))
	assert.Contains(t, err.Error(), "Alice Liddell")

	view, err := env.svc.GetAsset(ctx, "chair_01")
	require.NoError(t, err)
	assert.True(t, view.IsCheckedOut)
	assert.Equal(t, "alice", *view.CheckedOutBy)
}

func TestCheckout_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))

	_, err := env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "  "})
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = env.svc.Checkout(ctx, "ghost", model.CheckoutRequest{PennKey: "alice"})
	assert.Equal(t, model.CodeAssetNotFound, model.ToErrorCode(err))

	_, err = env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "nobody"})
	assert.Equal(t, model.CodeAuthorNotFound, model.ToErrorCode(err))
}

func TestCheckin_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))
	env.store.SeedAuthor(model.Author{PennKey: "bob"})

	_, err := env.svc.Checkin(ctx, "chair_01", model.CheckinRequest{PennKey: "alice"})
	assert.Equal(t, model.CodeNotCheckedOut, model.ToErrorCode(err))

	_, err = env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "alice"})
	require.NoError(t, err)

	_, err = env.svc.Checkin(ctx, "chair_01", model.CheckinRequest{PennKey: "bob"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Equal(t, model.CodeCheckedOutByOther, model.ToErrorCode(err))

	state, err := env.svc.Checkin(ctx, "chair_01", model.CheckinRequest{PennKey: "alice"})
	require.NoError(t, err)
	assert.False(t, state.IsCheckedOut)
	assert.Nil(t, state.CheckedOutBy)
	assert.Nil(t, state.CheckedOutAt)
}

func TestCheckin_Force(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))

	_, err := env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "alice"})
	require.NoError(t, err)

	env.store.SeedAuthor(model.Author{PennKey: "admin", FirstName: "Ada", LastName: "Min"})

	state, err := env.svc.Checkin(ctx, "chair_01", model.CheckinRequest{PennKey: "admin", Force: true})
	require.NoError(t, err)
	assert.False(t, state.IsCheckedOut)
}

func TestCheckin_ForceRequiresKnownAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))

	_, err := env.svc.Checkout(ctx, "chair_01", model.CheckoutRequest{PennKey: "alice"})
	require.NoError(t, err)

	_, err = env.svc.Checkin(ctx, "chair_01", model.CheckinRequest{PennKey: "nobody", Force: true})
	require.Error(t, err)
	assert.Equal(t, model.CodeAuthorNotFound, model.ToErrorCode(err))

	asset, err := env.store.GetAssetByName(ctx, "chair_01")
	require.NoError(t, err)
	require.NotNil(t, asset.CheckedOutBy)
	assert.Equal(t, "alice", *asset.CheckedOutBy)
}
