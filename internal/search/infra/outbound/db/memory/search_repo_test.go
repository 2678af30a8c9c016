package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
)

func TestSearch_PunctuationOnBothSides(t *testing.T) {
	repo := NewInMemorySearchRepo()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &searchDomain.SearchPost{PostID: "p1", Title: "Hello, world!", Description: "World desc"}))

	tests := []string{"hello!", "world,", "HELLO", "desc."}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			res, err := repo.Search(ctx, q, 10)

			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, "p1", res[0].PostID)
		})
	}
}

func TestSearch_RanksByMatchesAndCaps(t *testing.T) {
	repo := NewInMemorySearchRepo()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &searchDomain.SearchPost{PostID: "once", Title: "Hello", Description: "nothing else"}))
	require.NoError(t, repo.Insert(ctx, &searchDomain.SearchPost{PostID: "twice", Title: "Hello", Description: "hello again"}))
	require.NoError(t, repo.Insert(ctx, &searchDomain.SearchPost{PostID: "none", Title: "Bye", Description: "see you"}))

	res, err := repo.Search(ctx, "hello", 1)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "twice", res[0].PostID)
}
