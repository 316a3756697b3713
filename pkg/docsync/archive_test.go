package docsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/automerge/automerge-go"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/pixelpusher/pkg/mutation"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(context.Background(), filepath.Join(t.TempDir(), "archive.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})
	return a
}

func seededDoc(t *testing.T) *automerge.Doc {
	t.Helper()
	doc := automerge.New()
	_, err := WriteContent(doc, mutation.NewContent())
	require.NoError(t, err)
	_, err = doc.Commit("seed", automerge.CommitOptions{AllowEmpty: true})
	require.NoError(t, err)
	return doc
}

func TestArchivePutReportsChanges(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)
	doc := seededDoc(t)

	changed, err := a.Put(ctx, "d1", doc)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = a.Put(ctx, "d1", doc)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = WriteContent(doc, mutation.Default{}.SetTitle(mutation.NewContent(), "other"))
	require.NoError(t, err)
	_, err = doc.Commit("title", automerge.CommitOptions{AllowEmpty: true})
	require.NoError(t, err)

	changed, err = a.Put(ctx, "d1", doc)
	require.NoError(t, err)
	require.True(t, changed)

	got, err := a.Get(ctx, "d1")
	require.NoError(t, err)
	content, err := ReadContent(got)
	require.NoError(t, err)
	require.Equal(t, "other", content.Title)
}

func TestArchiveGetMissing(t *testing.T) {
	_, err := openTestArchive(t).Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveAllAndDelete(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)
	for _, id := range []string{"a", "b"} {
		_, err := a.Put(ctx, id, seededDoc(t))
		require.NoError(t, err)
	}

	docs, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Contains(t, docs, "a")
	require.Contains(t, docs, "b")

	require.NoError(t, a.Delete(ctx, "a"))
	docs, err = a.All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	_, err = a.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}
