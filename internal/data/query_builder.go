package data

import (
	"fmt"
	"strings"

	"github.com/schoolhub/schoolhub-backend/db"
)

// QueryBuilder appends WHERE, ORDER BY and LIMIT clauses to a base SELECT. Placeholders are `?` until
// BuildAndRebind turns them into the driver's bindvars.
type QueryBuilder struct {
	base      string
	where     []string
	whereArgs []interface{}
	orderBy   string
	limit     int
	offset    int
}

func NewQueryBuilder(query string) *QueryBuilder {
	return &QueryBuilder{base: query}
}

// AddCondition ANDs a condition such as "s.status = ?" with its arguments.
func (qb *QueryBuilder) AddCondition(condition string, value ...interface{}) *QueryBuilder {
	qb.where = append(qb.where, condition)
	qb.whereArgs = append(qb.whereArgs, value...)
	return qb
}

// AddSorting orders by prefix.sortField. sortField must come from an allow-list since it is not a bind parameter.
func (qb *QueryBuilder) AddSorting(sortField SortField, sortOrder SortOrder, prefix string) *QueryBuilder {
	if sortField == "" {
		return qb
	}
	qb.orderBy = fmt.Sprintf("%s.%s %s", prefix, sortField, sortOrder)
	return qb
}

// AddPagination limits the result to a 1-based page. Non positive values leave the query unpaginated.
func (qb *QueryBuilder) AddPagination(page int, pageLimit int) *QueryBuilder {
	if page < 1 || pageLimit < 1 {
		return qb
	}
	qb.limit, qb.offset = pageLimit, (page-1)*pageLimit
	return qb
}

func (qb *QueryBuilder) Build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(qb.base)
	args := make([]interface{}, 0, len(qb.whereArgs)+2)

	if len(qb.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(qb.where, " AND "))
		args = append(args, qb.whereArgs...)
	}
	if qb.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(qb.orderBy)
	}
	if qb.limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, qb.limit, qb.offset)
	}
	return sb.String(), args
}

func (qb *QueryBuilder) BuildAndRebind(sqlExec db.SQLExecuter) (string, []interface{}) {
	query, args := qb.Build()
	return sqlExec.Rebind(query), args
}
