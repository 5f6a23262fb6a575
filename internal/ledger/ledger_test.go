// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	recs := []types.DocumentRecord{
		{SourcePDF: "/docs/a.pdf", OutputPath: "/docs/a.md", Status: types.StatusConverted, Pages: 4, Model: "gemini", Duration: 90 * time.Second, FinishedAt: base},
		{SourcePDF: "/docs/b.pdf", Status: types.StatusFailed, Pages: 2, SkippedPages: 2, Detail: "no text extracted", FinishedAt: base.Add(time.Minute)},
		{SourcePDF: "/docs/c.pdf", OutputPath: "/docs/c.md", Status: types.StatusPartial, Pages: 3, SkippedPages: 1, FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range recs {
		require.NoError(t, s.Record(ctx, r))
	}

	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/docs/c.pdf", got[0].SourcePDF, "newest first")
	assert.Equal(t, "/docs/a.pdf", got[2].SourcePDF)

	a := got[2]
	assert.Equal(t, "/docs/a.md", a.OutputPath)
	assert.Equal(t, types.StatusConverted, a.Status)
	assert.Equal(t, 4, a.Pages)
	assert.Equal(t, "gemini", a.Model)
	assert.Equal(t, 90*time.Second, a.Duration)
	assert.True(t, base.Equal(a.FinishedAt))

	failed, err := s.List(ctx, Filter{Status: types.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "no text extracted", failed[0].Detail)

	limited, err := s.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordDefaultsFinishedAt(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record(context.Background(), types.DocumentRecord{SourcePDF: "x.pdf", Status: types.StatusCancelled}))

	got, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].FinishedAt, time.Minute)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), types.DocumentRecord{SourcePDF: "x.pdf", Status: types.StatusConverted}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]types.DocumentRecord{
		{SourcePDF: "/docs/report.pdf", Status: types.StatusPartial, Pages: 5, SkippedPages: 1, Duration: 61 * time.Second, FinishedAt: time.Now()},
	})
	for _, want := range []string{"pdf", "report.pdf", "partial", "1m1s", "1 documents"} {
		assert.True(t, strings.Contains(strings.ToLower(out), want), "table missing %q:\n%s", want, out)
	}
}
