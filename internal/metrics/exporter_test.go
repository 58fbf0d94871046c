package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOTLPExporter_CreatesAllInstruments(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitOTLPExporter(ctx)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	defer shutdown(ctx)

	assert.NotNil(t, MountsActive)
	assert.NotNil(t, GitCommitsTotal)
	assert.NotNil(t, GitPushesTotal)
	assert.NotNil(t, GitPullsTotal)
	assert.NotNil(t, OverlayBytes)
}

func TestInitOTLPExporter_InstrumentsRecordWithoutPanicking(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitOTLPExporter(ctx)
	require.NoError(t, err)
	defer shutdown(ctx)

	assert.NotPanics(t, func() {
		MountsActive.Add(ctx, 1)
		GitCommitsTotal.Add(ctx, 1)
		GitPushesTotal.Add(ctx, 1)
		GitPullsTotal.Add(ctx, 1)
		OverlayBytes.Add(ctx, 1024)
		OverlayBytes.Add(ctx, -512)
		MountsActive.Add(ctx, -1)
	})
}

func TestInitOTLPExporter_ShutdownIsIdempotent(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitOTLPExporter(ctx)
	require.NoError(t, err)

	assert.NoError(t, shutdown(ctx))
	assert.NoError(t, shutdown(ctx))
}
