package engine

import (
	"math"
	"sort"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
)

// AggFunc names one of the supported aggregate functions.
type AggFunc string

const (
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggCount AggFunc = "COUNT"
)

// Aggregate is one SELECT-list aggregate: a function over a column (or "*"
// for COUNT(*)), bound to the output field named As.
type Aggregate struct {
	Func   AggFunc
	Column string
	As     string
}

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Column string
	Desc   bool
}

// Select runs a single-table query: filter, optional group/aggregate,
// optional having, projection, and ordering, in that order. columns is the
// projection list; a nil or empty slice means every column. When groupBy
// and aggregates are both empty, this is a plain filtered scan.
func (e *Engine) Select(table string, columns []string, where *catalog.Predicate, groupBy []string, aggregates []Aggregate, having *catalog.Predicate, orderBy []OrderKey) (Result, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return Result{}, err
	}

	matched := e.scan(t, where)

	var rows []catalog.Record
	if len(groupBy) > 0 || len(aggregates) > 0 {
		rows, err = groupAndAggregate(matched, groupBy, aggregates, having)
		if err != nil {
			return Result{}, err
		}
	} else {
		rows = matched
	}

	rows = projectRows(rows, withAggregateColumns(columns, aggregates))
	sortRows(rows, orderBy)

	return Result{Kind: RowsResult, Rows: rows}, nil
}

// JoinSelect runs an equi-join between two tables on leftCol = rightCol,
// aliasing left/right records so predicate and projection columns can be
// written either bare or "alias.column" qualified. A self-join with no
// aliases given gets _L/_R suffixes so the two sides stay distinguishable
// in the joined record. The smaller table (by
// row count) drives the scan; the larger table is probed, preferring an
// existing index on the join column over building a transient hash map.
// group_by/aggregates/having/order_by apply to the joined record stream
// exactly as they do for a single-table Select.
func (e *Engine) JoinSelect(leftTable, leftAlias, rightTable, rightAlias, leftCol, rightCol string, columns []string, where *catalog.Predicate, groupBy []string, aggregates []Aggregate, having *catalog.Predicate, orderBy []OrderKey) (Result, error) {
	lt, err := e.requireTable(leftTable)
	if err != nil {
		return Result{}, err
	}
	rt, err := e.requireTable(rightTable)
	if err != nil {
		return Result{}, err
	}
	if leftTable == rightTable && leftAlias == "" && rightAlias == "" {
		leftAlias, rightAlias = leftTable+"_L", rightTable+"_R"
	}
	if leftAlias == "" {
		leftAlias = leftTable
	}
	if rightAlias == "" {
		rightAlias = rightTable
	}
	leftCol, rightCol = bareColumn(leftCol), bareColumn(rightCol)

	outerTable, outerAlias, outerCol := lt, leftAlias, leftCol
	innerTable, innerAlias, innerCol := rt, rightAlias, rightCol
	if len(rt.Data) < len(lt.Data) {
		outerTable, outerAlias, outerCol = rt, rightAlias, rightCol
		innerTable, innerAlias, innerCol = lt, leftAlias, leftCol
	}

	outerColIdx := outerTable.ColumnIndex(outerCol)
	innerColIdx := innerTable.ColumnIndex(innerCol)
	if outerColIdx < 0 || innerColIdx < 0 {
		return Result{}, SchemaErrorf("join column not found on one of the joined tables")
	}

	probe := e.idx.On(innerTable.Name, innerCol)
	var hashProbe map[catalog.Value][]int
	if probe == nil {
		hashProbe = make(map[catalog.Value][]int, len(innerTable.Data))
		for i, row := range innerTable.Data {
			hashProbe[row[innerColIdx]] = append(hashProbe[row[innerColIdx]], i)
		}
	}

	var out []catalog.Record
	for _, outerRow := range outerTable.Data {
		key := outerRow[outerColIdx]
		if key.Null {
			continue
		}
		var innerRows []int
		if probe != nil {
			innerRows = probe.Lookup(key)
		} else {
			innerRows = hashProbe[key]
		}
		for _, innerRowIdx := range innerRows {
			innerRow := innerTable.Data[innerRowIdx]
			rec := make(catalog.Record, len(outerTable.Columns)+len(innerTable.Columns))
			mergeAliased(rec, outerTable, outerAlias, outerRow)
			mergeAliased(rec, innerTable, innerAlias, innerRow)
			if where.Eval(rec) {
				out = append(out, rec)
			}
		}
	}

	if len(groupBy) > 0 || len(aggregates) > 0 {
		grouped, err := groupAndAggregate(out, groupBy, aggregates, having)
		if err != nil {
			return Result{}, err
		}
		out = grouped
	}

	out = projectRows(out, withAggregateColumns(columns, aggregates))
	sortRows(out, orderBy)
	return Result{Kind: RowsResult, Rows: out}, nil
}

// withAggregateColumns extends an explicit projection list with every
// aggregate's output field, so "SELECT UserID, SUM(Amount) ..." keeps the
// computed column the user asked for alongside the projected ones.
func withAggregateColumns(columns []string, aggregates []Aggregate) []string {
	if len(columns) == 0 || len(aggregates) == 0 {
		return columns
	}
	out := make([]string, 0, len(columns)+len(aggregates))
	out = append(out, columns...)
	for _, agg := range aggregates {
		out = append(out, agg.As)
	}
	return out
}

// scan filters t's rows against where, accelerated by an index lookup when
// where is a single equality comparison on an indexed column.
func (e *Engine) scan(t *catalog.Table, where *catalog.Predicate) []catalog.Record {
	if where != nil && where.Simple != nil && where.Simple.Op == catalog.Eq && !where.Simple.HasCol2 {
		if idx := e.idx.On(t.Name, where.Simple.Column); idx != nil {
			rowIDs := idx.Lookup(where.Simple.Value)
			out := make([]catalog.Record, 0, len(rowIDs))
			for _, id := range rowIDs {
				if id < len(t.Data) {
					out = append(out, catalog.RecordFromRow(t, t.Data[id]))
				}
			}
			return out
		}
	}

	out := make([]catalog.Record, 0, len(t.Data))
	for _, row := range t.Data {
		rec := catalog.RecordFromRow(t, row)
		if where.Eval(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// bareColumn strips an "alias." qualifier, used when resolving a JOIN's ON
// columns against the actual table schema.
func bareColumn(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}

func mergeAliased(rec catalog.Record, t *catalog.Table, alias string, row catalog.Row) {
	for i, c := range t.Columns {
		rec[alias+"."+c.Name] = row[i]
	}
}

// projectRows narrows every record to columns, in order. An empty columns
// list is a pass-through (SELECT *).
func projectRows(rows []catalog.Record, columns []string) []catalog.Record {
	if len(columns) == 0 {
		return rows
	}
	out := make([]catalog.Record, len(rows))
	for i, rec := range rows {
		projected := make(catalog.Record, len(columns))
		for _, col := range columns {
			if v, ok := catalog.Lookup(rec, col); ok {
				projected[col] = v
			}
		}
		out[i] = projected
	}
	return out
}

func sortRows(rows []catalog.Record, orderBy []OrderKey) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range orderBy {
			a, aok := catalog.Lookup(rows[i], key.Column)
			b, bok := catalog.Lookup(rows[j], key.Column)
			if !aok || !bok {
				continue
			}
			cmp := a.Compare(b)
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// groupAndAggregate partitions rows by the values of groupBy (order of
// first appearance preserved), computes every aggregate per group, applies
// having, and returns one record per surviving group holding the group-by
// columns plus each aggregate's output field. With no GROUP BY clause, zero
// matching rows still produce a single group (conventional SQL semantics:
// SELECT SUM(x) FROM t over an empty t yields one row of NULLs, not zero
// rows); with an explicit GROUP BY, zero matching rows yield zero groups.
func groupAndAggregate(rows []catalog.Record, groupBy []string, aggregates []Aggregate, having *catalog.Predicate) ([]catalog.Record, error) {
	type group struct {
		key  string
		rows []catalog.Record
	}
	index := make(map[string]int)
	var groups []group

	if len(groupBy) == 0 {
		groups = append(groups, group{})
		index[""] = 0
	}

	for _, rec := range rows {
		key := groupKey(rec, groupBy)
		if i, ok := index[key]; ok {
			groups[i].rows = append(groups[i].rows, rec)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{key: key, rows: []catalog.Record{rec}})
	}

	out := make([]catalog.Record, 0, len(groups))
	for _, g := range groups {
		rec := make(catalog.Record, len(groupBy)+len(aggregates))
		for _, col := range groupBy {
			if v, ok := catalog.Lookup(g.rows[0], col); ok {
				rec[col] = v
			}
		}
		for _, agg := range aggregates {
			v, err := computeAggregate(agg, g.rows)
			if err != nil {
				return nil, err
			}
			rec[agg.As] = v
		}
		if having.Eval(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func groupKey(rec catalog.Record, groupBy []string) string {
	key := ""
	for _, col := range groupBy {
		v, _ := catalog.Lookup(rec, col)
		key += v.Render() + "\x00"
	}
	return key
}

func computeAggregate(agg Aggregate, rows []catalog.Record) (catalog.Value, error) {
	if agg.Func == AggCount {
		if agg.Column == "*" {
			return catalog.NewInt(int64(len(rows))), nil
		}
		count := int64(0)
		for _, rec := range rows {
			if v, ok := catalog.Lookup(rec, agg.Column); ok && !v.Null {
				count++
			}
		}
		return catalog.NewInt(count), nil
	}

	var values []catalog.Value
	for _, rec := range rows {
		if v, ok := catalog.Lookup(rec, agg.Column); ok && !v.Null {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return catalog.NewNull(catalog.Double), nil
	}

	switch agg.Func {
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v.Compare(min) < 0 {
				min = v
			}
		}
		return min, nil
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v.Compare(max) > 0 {
				max = v
			}
		}
		return max, nil
	case AggSum, AggAvg:
		sum := 0.0
		isInt := true
		for _, v := range values {
			switch v.Type {
			case catalog.Int:
				sum += float64(v.Int)
			case catalog.Double:
				sum += v.Float
				isInt = false
			default:
				return catalog.Value{}, ValueErrorf("%s requires a numeric column, got %s", agg.Func, v.Type)
			}
		}
		if agg.Func == AggAvg {
			return catalog.NewDouble(round2(sum / float64(len(values)))), nil
		}
		if isInt {
			return catalog.NewInt(int64(sum)), nil
		}
		return catalog.NewDouble(round2(sum)), nil
	default:
		return catalog.Value{}, ValueErrorf("unsupported aggregate function %q", agg.Func)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
