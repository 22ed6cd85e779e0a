package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestUpsertAndSearch_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)

	n, err := ix.Upsert(ctx, "alice", "alice-1", "Quarterly revenue grew in the northern region")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = ix.Upsert(ctx, "alice", "alice-2", "Employee onboarding checklist")
	require.NoError(t, err)
	_, err = ix.Upsert(ctx, "bob", "bob-1", "Revenue forecast for bob only")
	require.NoError(t, err)

	got, err := ix.Search(ctx, "alice", "What was the revenue?", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"Quarterly revenue grew in the northern region"}, got)

	got, err = ix.Search(ctx, "bob", "revenue", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"Revenue forecast for bob only"}, got)

	got, err = ix.Search(ctx, "alic", "revenue", 3)
	require.NoError(t, err)
	require.Empty(t, got, "scope filter is exact")
}

func TestUpsert_ReplacesSameID(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)

	_, err := ix.Upsert(ctx, "alice", "c1", "old gadget text")
	require.NoError(t, err)
	_, err = ix.Upsert(ctx, "alice", "c1", "new widget text")
	require.NoError(t, err)

	got, err := ix.Search(ctx, "alice", "gadget widget", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"new widget text"}, got)
}

func TestUpsert_RequiresKeys(t *testing.T) {
	_, err := openTestIndex(t).Upsert(context.Background(), "", "id", "x")
	require.Error(t, err)
}

func TestSearch_TopKAndRanking(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)

	texts := []string{
		"solar panels",
		"solar solar solar panels and solar storage",
		"wind turbines",
		"solar farm",
		"solar roof",
	}
	for i, text := range texts {
		_, err := ix.Upsert(ctx, "u", string(rune('a'+i)), text)
		require.NoError(t, err)
	}

	got, err := ix.Search(ctx, "u", "solar", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultTopK)
	require.Equal(t, "solar solar solar panels and solar storage", got[0])
}

func TestSearch_PunctuationIsNotSyntax(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)
	_, err := ix.Upsert(ctx, "u", "1", "pricing NEAR terms")
	require.NoError(t, err)

	got, err := ix.Search(ctx, "u", `pricing" AND (NEAR* -`, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = ix.Search(ctx, "u", "?!", 3)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPurgeOwner(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)
	for _, id := range []string{"1", "2"} {
		_, err := ix.Upsert(ctx, "alice", "alice-"+id, "shared topic")
		require.NoError(t, err)
	}
	_, err := ix.Upsert(ctx, "bob", "bob-1", "shared topic")
	require.NoError(t, err)

	n, err := ix.PurgeOwner(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := ix.Search(ctx, "alice", "topic", 3)
	require.NoError(t, err)
	require.Empty(t, got)
	got, err = ix.Search(ctx, "bob", "topic", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = ix.PurgeOwner(ctx, "")
	require.Error(t, err)
}

func TestMatchExpression(t *testing.T) {
	require.Equal(t, `"what" OR "is" OR "go"`, matchExpression("What is Go? go!"))
	require.Equal(t, "", matchExpression("  ...  "))
}
