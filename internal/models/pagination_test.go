package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, Pagination{Page: 2, PageSize: 2, TotalCount: 5}, *meta)

	page, _ = Paginate(items, 3, 2)
	assert.Equal(t, []int{5}, page)

	page, meta = Paginate(items, 0, 0)
	assert.Equal(t, items, page)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, defaultPageSize, meta.PageSize)

	_, meta = Paginate(items, 1, 10_000)
	assert.Equal(t, maxPageSize, meta.PageSize)
}

func TestPaginateBeyondLastPage(t *testing.T) {
	items := []int{1, 2, 3}

	page, meta := Paginate(items, 9, 2)
	assert.Empty(t, page)
	assert.Equal(t, 3, meta.TotalCount)

	assert.NotPanics(t, func() {
		page, meta = Paginate(items, math.MaxInt64/100, 200)
	})
	assert.Empty(t, page)
	assert.Equal(t, math.MaxInt64/100, meta.Page)

	assert.NotPanics(t, func() {
		page, _ = Paginate(items, math.MaxInt, 1)
	})
	assert.Empty(t, page)
}
