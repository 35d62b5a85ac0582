package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingclub/internal/model"
)

func TestDeviceService_RegisterMovesTokenBetweenUsers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := model.RegisterTokenRequest{Token: "ExponentPushToken[abc]", Platform: model.PlatformIOS}

	require.NoError(t, env.devices.Register(ctx, 1, req))
	require.NoError(t, env.devices.Register(ctx, 2, req))

	first, err := env.devices.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := env.devices.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, model.PlatformIOS, second[0].Platform)
}

func TestDeviceService_Remove(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	require.NoError(t, env.devices.Register(ctx, 1, model.RegisterTokenRequest{Token: "tok", Platform: model.PlatformAndroid}))

	assert.ErrorIs(t, env.devices.Remove(ctx, 2, "tok"), model.ErrDeviceTokenNotFound, "scoped to the owner")
	require.NoError(t, env.devices.Remove(ctx, 1, "tok"))
	assert.ErrorIs(t, env.devices.Remove(ctx, 1, "tok"), model.ErrDeviceTokenNotFound)
}
