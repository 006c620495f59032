package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) Statement {
	t.Helper()
	stmts, err := ParseBatch(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParseCreateTableWithForeignKey(t *testing.T) {
	stmt := parseOne(t, `CREATE TABLE Employees (id INT, dept_id INT, PRIMARY KEY(id), FOREIGN KEY(dept_id) REFERENCES Departments(id));`)
	require.NotNil(t, stmt.CreateTable)
	ct := stmt.CreateTable
	assert.Equal(t, "Employees", ct.Table)
	assert.Equal(t, "id", ct.PrimaryKey)
	require.Len(t, ct.Columns, 2)
	assert.Equal(t, "INT", ct.Columns[1].Type)
	require.Len(t, ct.ForeignKeys, 1)
	assert.Equal(t, "Departments", ct.ForeignKeys[0].ReferencedTable)
}

func TestParseCreateTableInlineConstraints(t *testing.T) {
	stmt := parseOne(t, `CREATE TABLE Employees (id INT PRIMARY KEY, dept_id INT FOREIGN KEY REFERENCES Departments(id), name STRING);`)
	ct := stmt.CreateTable
	assert.Equal(t, "id", ct.PrimaryKey)
	require.Len(t, ct.Columns, 3)
	require.Len(t, ct.ForeignKeys, 1)
	assert.Equal(t, "dept_id", ct.ForeignKeys[0].Column)
	assert.Equal(t, "Departments", ct.ForeignKeys[0].ReferencedTable)
	assert.Equal(t, "id", ct.ForeignKeys[0].ReferencedCol)
}

func TestParseCreateTableRejectsTwoPrimaryKeys(t *testing.T) {
	_, err := ParseBatch(`CREATE TABLE T (a INT PRIMARY KEY, b INT PRIMARY KEY);`)
	assert.Error(t, err)
}

func TestParseCreateTableRequiresPrimaryKey(t *testing.T) {
	_, err := ParseBatch(`CREATE TABLE T (id INT);`)
	assert.Error(t, err)
}

func TestParseInsertWithExplicitColumns(t *testing.T) {
	stmt := parseOne(t, `INSERT INTO Users (UserID, UserName) VALUES (1, 'Alice');`)
	require.NotNil(t, stmt.Insert)
	assert.Equal(t, []string{"UserID", "UserName"}, stmt.Insert.Columns)
	require.Len(t, stmt.Insert.Values, 2)
	assert.Equal(t, int64(1), stmt.Insert.Values[0].Int)
	assert.Equal(t, "Alice", stmt.Insert.Values[1].Str)
}

func TestParseNegativeAndFloatLiterals(t *testing.T) {
	stmt := parseOne(t, `INSERT INTO T VALUES (-5, 3.14, -2.5);`)
	vals := stmt.Insert.Values
	assert.Equal(t, int64(-5), vals[0].Int)
	assert.InDelta(t, 3.14, vals[1].Float, 0.0001)
	assert.InDelta(t, -2.5, vals[2].Float, 0.0001)
}

func TestParseNullLiteral(t *testing.T) {
	stmt := parseOne(t, `INSERT INTO T VALUES (1, NULL);`)
	assert.True(t, stmt.Insert.Values[1].IsNull)
}

func TestParseWhereCompoundAndOr(t *testing.T) {
	stmt := parseOne(t, `DELETE FROM T WHERE a = 1 AND b = 2 OR c = 3;`)
	where := stmt.Delete.Where
	require.False(t, where.IsLeaf())
	assert.Equal(t, "OR", where.BoolOp)
	assert.Equal(t, "AND", where.Left.BoolOp)
}

func TestParseWhereParenthesizedGrouping(t *testing.T) {
	stmt := parseOne(t, `DELETE FROM T WHERE (a = 1 OR b = 2) AND c = 3;`)
	where := stmt.Delete.Where
	assert.Equal(t, "AND", where.BoolOp)
	assert.Equal(t, "OR", where.Left.BoolOp)
	assert.True(t, where.Right.IsLeaf())
}

func TestParseNotEqualSpellings(t *testing.T) {
	for _, src := range []string{
		`DELETE FROM T WHERE a != 1;`,
		`DELETE FROM T WHERE a <> 1;`,
	} {
		stmt := parseOne(t, src)
		assert.Equal(t, "!=", stmt.Delete.Where.Op)
	}
}

func TestParseComparisonOperators(t *testing.T) {
	for op := range map[string]bool{"=": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true} {
		stmt := parseOne(t, `DELETE FROM T WHERE a `+op+` 1;`)
		assert.Equal(t, op, stmt.Delete.Where.Op)
	}
}

func TestParseUpdateSetMultipleColumns(t *testing.T) {
	stmt := parseOne(t, `UPDATE T SET a = 1, b = 'x' WHERE id = 5;`)
	require.Len(t, stmt.Update.Set, 2)
	assert.Equal(t, "a", stmt.Update.Set[0].Column)
	assert.Equal(t, "b", stmt.Update.Set[1].Column)
	assert.Equal(t, "id", stmt.Update.Where.Column)
}

func TestParseSelectQualifiedColumnsFromJoin(t *testing.T) {
	stmt := parseOne(t, `SELECT Users.UserName, Orders.OrderID FROM Users JOIN Orders ON Users.UserID = Orders.UserID;`)
	sel := stmt.Select
	require.NotNil(t, sel.Join)
	assert.Equal(t, "Orders", sel.Join.Table)
	assert.Equal(t, "Users.UserID", sel.Join.LeftCol)
	assert.Equal(t, "Orders.UserID", sel.Join.RightCol)
	assert.Equal(t, []string{"Users.UserName", "Orders.OrderID"}, sel.Columns)
}

func TestParseSelectAggregatesGroupByHavingOrderBy(t *testing.T) {
	stmt := parseOne(t, `SELECT UserID, SUM(Amount) FROM Orders GROUP BY UserID HAVING SUM(Amount) > 100 ORDER BY Amount ASC, OrderID DESC;`)
	sel := stmt.Select
	assert.Equal(t, []string{"UserID"}, sel.Columns)
	require.Len(t, sel.Aggregates, 1)
	assert.Equal(t, "SUM", sel.Aggregates[0].Func)
	assert.Equal(t, "Amount", sel.Aggregates[0].Column)
	assert.Equal(t, []string{"UserID"}, sel.GroupBy)
	require.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 2)
	assert.False(t, sel.OrderBy[0].Desc)
	assert.True(t, sel.OrderBy[1].Desc)
}

func TestParseCountStar(t *testing.T) {
	stmt := parseOne(t, `SELECT COUNT(*) FROM T;`)
	require.Len(t, stmt.Select.Aggregates, 1)
	assert.Equal(t, "*", stmt.Select.Aggregates[0].Column)
	assert.Equal(t, "COUNT(*)", stmt.Select.Aggregates[0].As)
}

func TestParseAggregateAlias(t *testing.T) {
	stmt := parseOne(t, `SELECT SUM(amount) AS total FROM T;`)
	assert.Equal(t, "total", stmt.Select.Aggregates[0].As)
}

func TestParseBatchMultipleStatements(t *testing.T) {
	stmts, err := ParseBatch(`CREATE TABLE T (id INT, PRIMARY KEY(id)); INSERT INTO T VALUES (1); SELECT * FROM T;`)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.NotNil(t, stmts[0].CreateTable)
	assert.NotNil(t, stmts[1].Insert)
	assert.NotNil(t, stmts[2].Select)
}

func TestParseBatchRejectsEmptyInput(t *testing.T) {
	_, err := ParseBatch(`   ;  ; `)
	assert.Error(t, err)
}

func TestParseRejectsUnknownStatement(t *testing.T) {
	_, err := ParseBatch(`FOOBAR T;`)
	assert.Error(t, err)
}

func TestParseDropIndex(t *testing.T) {
	stmt := parseOne(t, `DROP INDEX dept_idx;`)
	assert.Equal(t, "dept_idx", stmt.DropIndex.Name)
	assert.Empty(t, stmt.DropIndex.Table)

	scoped := parseOne(t, `DROP INDEX dept_idx ON T;`)
	assert.Equal(t, "dept_idx", scoped.DropIndex.Name)
	assert.Equal(t, "T", scoped.DropIndex.Table)
}

func TestParseStringLiteralWithDoubledQuote(t *testing.T) {
	stmt := parseOne(t, `INSERT INTO T VALUES ('O''Brien');`)
	assert.Equal(t, "O'Brien", stmt.Insert.Values[0].Str)
}

func TestAggregateDefaultOutputName(t *testing.T) {
	stmt := parseOne(t, `SELECT SUM(Amount), COUNT(*), MIN(Orders.Total) FROM Orders;`)
	aggs := stmt.Select.Aggregates
	require.Len(t, aggs, 3)
	assert.Equal(t, "Amount", aggs[0].As)
	assert.Equal(t, "COUNT(*)", aggs[1].As)
	assert.Equal(t, "Total", aggs[2].As)
}

func TestParseCreateIndexWithAndWithoutName(t *testing.T) {
	named := parseOne(t, `CREATE INDEX dept_idx ON T(dept);`)
	assert.Equal(t, "dept_idx", named.CreateIndex.Name)

	unnamed := parseOne(t, `CREATE INDEX ON T(dept);`)
	assert.Empty(t, unnamed.CreateIndex.Name)
	assert.Equal(t, "T", unnamed.CreateIndex.Table)
}
