//go:build unix

package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/regtest/internal/config"
)

func TestRunThenReview(t *testing.T) {
	f := newFixture(t, "t")
	require.NoError(t, os.WriteFile(filepath.Join(f.root, config.CorporaDir, "one.txt"), []byte("x1\n\nqx\n"), 0644))

	st := f.svc.Settings()
	st.Procs, st.Nice = 2, 0
	svc := NewService(mustLoad(t, f.root), WithSettings(st))
	ctx := context.Background()

	report, err := svc.Run(ctx, RunRequest{Test: "t", Corpora: []string{"one"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unique)
	assert.Zero(t, report.Shortfall())

	page, err := svc.Load(ctx, LoadRequest{Test: "t", Corpora: []string{"one"}})
	require.NoError(t, err)
	require.Len(t, page.Results[StateUnchanged], 2)
	finals := []string{page.Results[StateUnchanged][0].Final(), page.Results[StateUnchanged][1].Final()}
	assert.Equal(t, []string{"y1", "Qx"}, finals)

	res, err := svc.Inspect(ctx, "t", "qx")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Stages)
	assert.Equal(t, "Qx\n", res.Outputs["c"])
}

func mustLoad(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	return cfg
}
