package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPageInfoTrimsLookaheadRow(t *testing.T) {
	items, info := BuildPageInfo([]int{1, 2, 3, 4}, 10, 3)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, 13, info.NextSkip)
	assert.True(t, info.HasMore)
}

func TestBuildPageInfoLastPage(t *testing.T) {
	items, info := BuildPageInfo([]string{"a"}, 0, 5)
	assert.Equal(t, []string{"a"}, items)
	assert.Equal(t, 1, info.NextSkip)
	assert.False(t, info.HasMore)
}

func TestBuildPageInfoEmpty(t *testing.T) {
	items, info := BuildPageInfo[int](nil, 4, 5)
	assert.Empty(t, items)
	assert.Equal(t, 4, info.NextSkip)
	assert.False(t, info.HasMore)
}
