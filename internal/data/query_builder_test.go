package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_QueryBuilder(t *testing.T) {
	t.Run("conditions are joined with AND", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM schools s")
		qb.AddCondition("s.deleted_at IS NULL")
		qb.AddCondition("s.status = ?", "active")
		actual, params := qb.Build()

		assert.Equal(t, "SELECT * FROM schools s WHERE s.deleted_at IS NULL AND s.status = ?", actual)
		assert.Equal(t, []interface{}{"active"}, params)
	})

	t.Run("sorting", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM school_inquiries i")
		qb.AddSorting(SortFieldSubmittedAt, SortOrderDESC, "i")
		actual, _ := qb.Build()

		assert.Equal(t, "SELECT * FROM school_inquiries i ORDER BY i.submitted_at DESC", actual)
	})

	t.Run("non positive pagination is ignored", func(t *testing.T) {
		actual, params := NewQueryBuilder("SELECT * FROM schools s").AddPagination(0, 20).AddPagination(2, 0).Build()

		assert.Equal(t, "SELECT * FROM schools s", actual)
		assert.Empty(t, params)
	})

	t.Run("full query", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM schools s")
		qb.AddCondition("(s.name ILIKE ? OR s.domain ILIKE ?)", "%green%", "%green%")
		qb.AddSorting(SortFieldName, SortOrderASC, "s")
		qb.AddPagination(3, 20)
		actual, params := qb.Build()

		assert.Equal(t, "SELECT * FROM schools s WHERE (s.name ILIKE ? OR s.domain ILIKE ?) ORDER BY s.name ASC LIMIT ? OFFSET ?", actual)
		assert.Equal(t, []interface{}{"%green%", "%green%", 20, 40}, params)
	})
}

func Test_QueryParams_Normalized(t *testing.T) {
	qp := QueryParams{PageLimit: 500, SortOrder: "sideways"}.Normalized(SortFieldCreatedAt)
	assert.Equal(t, DefaultPage, qp.Page)
	assert.Equal(t, MaxPageLimit, qp.PageLimit)
	assert.Equal(t, SortFieldCreatedAt, qp.SortBy)
	assert.Equal(t, SortOrderDESC, qp.SortOrder)
}
