package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateCtxWithRqID(t *testing.T) {
	ctx := CreateCtxWithRqID(context.Background(), "rq-1")
	require.Equal(t, "rq-1", GetRequestIDFromCtx(ctx))

	ctx = CreateCtxWithRqID(context.Background(), "")
	require.NotEmpty(t, GetRequestIDFromCtx(ctx))
}

func TestEnsureRqIDKeepsExisting(t *testing.T) {
	ctx := CreateCtxWithRqID(context.Background(), "rq-2")
	require.Equal(t, "rq-2", GetRequestIDFromCtx(EnsureRqID(ctx)))

	require.Empty(t, GetRequestIDFromCtx(context.Background()))
	require.NotEmpty(t, GetRequestIDFromCtx(EnsureRqID(context.Background())))
}
