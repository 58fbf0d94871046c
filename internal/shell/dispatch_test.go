package shell_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ConfigButler/vfscore/internal/blobstore/mock"
	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/shell"
)

func TestMain(m *testing.M) {
	if _, err := metrics.InitOTLPExporter(context.Background()); err != nil {
		panic("failed to initialize metrics: " + err.Error())
	}
	m.Run()
}

func TestDispatch_UnknownCommandIsUsageError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())

	code := shell.Dispatch(ctx, h.env, []string{"frobnicate"})
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "unknown command")
}

func TestDispatch_EmptyArgvIsUsageError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())

	code := shell.Dispatch(ctx, h.env, nil)
	assert.Equal(t, 1, code)
}
