package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"eurocredit/core/types"
)

func openArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	archive := openArchive(t)

	require.NoError(t, archive.Record(ctx, &types.Event{Type: "credit.minted", Attributes: map[string]string{"amount": "10"}}))
	require.NoError(t, archive.Record(ctx, &types.Event{Type: "credit.burned", Attributes: map[string]string{"amount": "4"}}))
	require.NoError(t, archive.Record(ctx, &types.Event{Type: "credit.minted"}))

	all, err := archive.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "credit.minted", all[0].Type)
	require.Equal(t, "10", all[0].Attributes["amount"])
	require.Less(t, all[0].Seq, all[1].Seq)
	_, err = uuid.Parse(all[0].ID)
	require.NoError(t, err)
	require.NotEqual(t, all[0].ID, all[2].ID)

	minted, err := archive.List(ctx, "credit.minted", 1)
	require.NoError(t, err)
	require.Len(t, minted, 1)
	require.Equal(t, "10", minted[0].Attributes["amount"])

	count, err := archive.Count(ctx, "credit.minted")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	count, err = archive.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestRecordRejectsUntypedEvents(t *testing.T) {
	archive := openArchive(t)
	require.Error(t, archive.Record(context.Background(), nil))
	require.Error(t, archive.Record(context.Background(), &types.Event{}))
}

func TestArchivePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")
	archive, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, archive.Record(ctx, &types.Event{Type: "credit.liquidated"}))
	require.NoError(t, archive.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.Count(ctx, "credit.liquidated")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
