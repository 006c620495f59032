package engine_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/sql"
	"github.com/sqlitoy/sqlitoy/internal/storage"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "db.gob"), filepath.Join(dir, "idx.gob"))
	require.NoError(t, err)
	eng, err := engine.Open(store)
	require.NoError(t, err)
	return eng
}

func run(t *testing.T, eng *engine.Engine, src string) (engine.Result, error) {
	t.Helper()
	stmts, err := sql.PlanBatch(src)
	require.NoError(t, err)
	return eng.RunBatch(stmts)
}

func mustRun(t *testing.T, eng *engine.Engine, src string) engine.Result {
	t.Helper()
	res, err := run(t, eng, src)
	require.NoError(t, err)
	return res
}

func TestCreateInsertSelect(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Users (UserID INT PRIMARY KEY, UserName STRING, Email STRING);`)
	mustRun(t, eng, `INSERT INTO Users VALUES (1,'Alice','a@x');`)

	res := mustRun(t, eng, `SELECT * FROM Users WHERE UserID=1;`)
	require.Equal(t, engine.RowsResult, res.Kind)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["UserID"].Int)
	assert.Equal(t, "Alice", res.Rows[0]["UserName"].String)
	assert.Equal(t, "a@x", res.Rows[0]["Email"].String)
}

// A duplicate primary key is rejected and leaves no trace behind.
func TestDuplicatePrimaryKeyRejected(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Users (UserID INT PRIMARY KEY, UserName STRING, Email STRING);`)
	mustRun(t, eng, `INSERT INTO Users VALUES (1,'Alice','a@x');`)

	_, err := run(t, eng, `INSERT INTO Users VALUES (1,'Bob','b@x');`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindConstraint, engErr.Kind)

	res := mustRun(t, eng, `SELECT * FROM Users;`)
	assert.Len(t, res.Rows, 1)
}

// An equi-join pairs every matching row on both sides.
func TestEquiJoin(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Users (UserID INT PRIMARY KEY, UserName STRING);`)
	mustRun(t, eng, `INSERT INTO Users VALUES (1,'Alice');`)
	mustRun(t, eng, `INSERT INTO Users VALUES (2,'Bob');`)
	mustRun(t, eng, `CREATE TABLE Orders (OrderID INT PRIMARY KEY, UserID INT, Amount DOUBLE);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (101,1,99.99);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (102,2,49.99);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (103,1,29.99);`)

	res := mustRun(t, eng, `SELECT Users.UserName, Orders.OrderID FROM Users JOIN Orders ON Users.UserID = Orders.UserID;`)
	require.Len(t, res.Rows, 3)

	names := map[int64]string{}
	for _, rec := range res.Rows {
		names[rec["Orders.OrderID"].Int] = rec["Users.UserName"].String
	}
	assert.Equal(t, "Alice", names[101])
	assert.Equal(t, "Bob", names[102])
	assert.Equal(t, "Alice", names[103])
}

func TestGroupAggregateHaving(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Orders (OrderID INT PRIMARY KEY, UserID INT, Amount DOUBLE);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (101,1,99.99);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (102,1,49.99);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (103,2,29.99);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (104,2,199.99);`)

	res := mustRun(t, eng, `SELECT UserID, SUM(Amount) FROM Orders GROUP BY UserID HAVING SUM(Amount) > 100;`)
	require.Len(t, res.Rows, 2)

	sums := map[int64]float64{}
	for _, rec := range res.Rows {
		sums[rec["UserID"].Int] = rec["Amount"].Float
	}
	assert.InDelta(t, 149.98, sums[1], 0.001)
	assert.InDelta(t, 229.98, sums[2], 0.001)
}

// Multi-key ORDER BY: the rightmost key breaks ties on the left.
func TestOrderByMultiKey(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Orders (OrderID INT PRIMARY KEY, Amount DOUBLE);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (1,200);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (2,150);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (3,100);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (4,50);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (5,50);`)

	res := mustRun(t, eng, `SELECT OrderID, Amount FROM Orders ORDER BY Amount ASC, OrderID DESC;`)
	require.Len(t, res.Rows, 5)
	var ids []int64
	for _, rec := range res.Rows {
		ids = append(ids, rec["OrderID"].Int)
	}
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids)
}

// DROP TABLE is blocked while a foreign key references the table.
func TestForeignKeyDropBlocked(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Departments (id INT PRIMARY KEY, name STRING);`)
	mustRun(t, eng, `CREATE TABLE Employees (id INT PRIMARY KEY, dept_id INT, FOREIGN KEY(dept_id) REFERENCES Departments(id));`)

	_, err := run(t, eng, `DROP TABLE Departments;`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindSchema, engErr.Kind)

	assert.True(t, eng.TableExists("Departments"))
}

func TestForeignKeyViolationOnInsertIsRejected(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Departments (id INT PRIMARY KEY, name STRING);`)
	mustRun(t, eng, `CREATE TABLE Employees (id INT PRIMARY KEY, dept_id INT, FOREIGN KEY(dept_id) REFERENCES Departments(id));`)

	_, err := run(t, eng, `INSERT INTO Employees VALUES (1, 99);`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindConstraint, engErr.Kind)
}

func TestForeignKeyNullIsSkipped(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Departments (id INT PRIMARY KEY, name STRING);`)
	mustRun(t, eng, `CREATE TABLE Employees (id INT PRIMARY KEY, dept_id INT, FOREIGN KEY(dept_id) REFERENCES Departments(id));`)

	_, err := run(t, eng, `INSERT INTO Employees (id) VALUES (1);`)
	require.NoError(t, err)
}

// Delete reports exactly how many rows it removed.
func TestDeleteCountLaw(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, v INT);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,10);`)
	mustRun(t, eng, `INSERT INTO T VALUES (2,20);`)
	mustRun(t, eng, `INSERT INTO T VALUES (3,10);`)

	res := mustRun(t, eng, `DELETE FROM T WHERE v = 10;`)
	assert.Equal(t, engine.CountResult, res.Kind)
	assert.Equal(t, 2, res.Count)

	rows := mustRun(t, eng, `SELECT * FROM T;`)
	assert.Len(t, rows.Rows, 1)
}

// Update preserves row count and only touches matching rows.
func TestUpdatePreservation(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, v INT);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,10);`)
	mustRun(t, eng, `INSERT INTO T VALUES (2,20);`)

	res := mustRun(t, eng, `UPDATE T SET v = 99 WHERE id = 1;`)
	assert.Equal(t, 1, res.Count)

	rows := mustRun(t, eng, `SELECT * FROM T ORDER BY id ASC;`)
	require.Len(t, rows.Rows, 2)
	assert.Equal(t, int64(99), rows.Rows[0]["v"].Int)
	assert.Equal(t, int64(20), rows.Rows[1]["v"].Int)
}

func TestUpdateRejectsPrimaryKeyCollision(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, v INT);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,10);`)
	mustRun(t, eng, `INSERT INTO T VALUES (2,20);`)

	_, err := run(t, eng, `UPDATE T SET id = 2 WHERE id = 1;`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindConstraint, engErr.Kind)
}

func TestUnknownColumnInSingleTableSelectFails(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY);`)
	_, err := run(t, eng, `SELECT nope FROM T;`)
	require.Error(t, err)
}

func TestCreateIndexThenEqualityLookupUsesIndex(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, dept STRING);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,'eng');`)
	mustRun(t, eng, `INSERT INTO T VALUES (2,'sales');`)
	mustRun(t, eng, `CREATE INDEX dept_idx ON T(dept);`)

	res := mustRun(t, eng, `SELECT * FROM T WHERE dept = 'eng';`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["id"].Int)
}

func TestDropIndexByName(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, dept STRING);`)
	mustRun(t, eng, `CREATE INDEX dept_idx ON T(dept);`)
	mustRun(t, eng, `DROP INDEX dept_idx;`)

	_, err := run(t, eng, `DROP INDEX dept_idx;`)
	require.Error(t, err)
}

func TestBatchRollsBackEntirelyOnMidBatchFailure(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY);`)

	_, err := run(t, eng, `INSERT INTO T VALUES (1); INSERT INTO T VALUES (1);`)
	require.Error(t, err)

	res := mustRun(t, eng, `SELECT * FROM T;`)
	assert.Empty(t, res.Rows)
}

func TestCountAndAvgAggregates(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Orders (id INT PRIMARY KEY, amount DOUBLE);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (1,10);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (2,20);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (3,30);`)

	res := mustRun(t, eng, `SELECT COUNT(*), AVG(amount) FROM Orders;`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(3), res.Rows[0]["COUNT(*)"].Int)
	assert.InDelta(t, 20.0, res.Rows[0]["amount"].Float, 0.001)
}

func TestAggregateOverEmptyTableWithNoGroupByYieldsOneNullRow(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Orders (id INT PRIMARY KEY, amount DOUBLE);`)

	res := mustRun(t, eng, `SELECT SUM(amount) FROM Orders;`)
	require.Len(t, res.Rows, 1)
	assert.True(t, res.Rows[0]["amount"].Null)
}

func TestAggregateWithGroupByOverEmptyTableYieldsNoRows(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Orders (id INT PRIMARY KEY, user_id INT, amount DOUBLE);`)

	res := mustRun(t, eng, `SELECT user_id, SUM(amount) FROM Orders GROUP BY user_id;`)
	assert.Empty(t, res.Rows)
}

func TestSelfJoinGetsSideSuffixes(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Employees (id INT PRIMARY KEY, manager_id INT);`)
	mustRun(t, eng, `INSERT INTO Employees VALUES (1, 1);`)
	mustRun(t, eng, `INSERT INTO Employees VALUES (2, 1);`)

	res := mustRun(t, eng, `SELECT * FROM Employees JOIN Employees ON manager_id = id;`)
	require.NotEmpty(t, res.Rows)
	_, hasLeft := res.Rows[0]["Employees_L.id"]
	_, hasRight := res.Rows[0]["Employees_R.id"]
	assert.True(t, hasLeft)
	assert.True(t, hasRight)
}

func TestJoinOnClauseWrittenInReverseOrder(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE Users (UserID INT PRIMARY KEY, UserName STRING);`)
	mustRun(t, eng, `INSERT INTO Users VALUES (1,'Alice');`)
	mustRun(t, eng, `CREATE TABLE Orders (OrderID INT PRIMARY KEY, BuyerID INT);`)
	mustRun(t, eng, `INSERT INTO Orders VALUES (101,1);`)

	res := mustRun(t, eng, `SELECT Users.UserName, Orders.OrderID FROM Users JOIN Orders ON Orders.BuyerID = Users.UserID;`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["Users.UserName"].String)
}

func TestUpdateRejectsTypeMismatch(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, v INT);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,10);`)

	_, err := run(t, eng, `UPDATE T SET v = 'oops' WHERE id = 1;`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindConstraint, engErr.Kind)
}

func TestUpdateRejectsNullPrimaryKey(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, v INT);`)
	mustRun(t, eng, `INSERT INTO T VALUES (1,10);`)

	_, err := run(t, eng, `UPDATE T SET id = NULL WHERE id = 1;`)
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindConstraint, engErr.Kind)
}

func TestDropIndexOnTableNarrowsValidation(t *testing.T) {
	eng := newEngine(t)
	mustRun(t, eng, `CREATE TABLE T (id INT PRIMARY KEY, dept STRING);`)
	mustRun(t, eng, `CREATE INDEX dept_idx ON T(dept);`)
	mustRun(t, eng, `DROP INDEX dept_idx ON T;`)

	_, err := run(t, eng, `DROP INDEX other_idx ON Missing;`)
	require.Error(t, err)
}

// Reopening the engine over the same snapshot files reconstructs the
// state every mutation left behind.
func TestPersistenceRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	open := func() *engine.Engine {
		store, err := storage.Open(filepath.Join(dir, "db.gob"), filepath.Join(dir, "idx.gob"))
		require.NoError(t, err)
		eng, err := engine.Open(store)
		require.NoError(t, err)
		return eng
	}

	eng := open()
	mustRun(t, eng, `CREATE TABLE Users (UserID INT PRIMARY KEY, UserName STRING);`)
	mustRun(t, eng, `INSERT INTO Users VALUES (1,'Alice');`)
	mustRun(t, eng, `INSERT INTO Users VALUES (2,'Bob');`)
	mustRun(t, eng, `DELETE FROM Users WHERE UserID = 2;`)

	reopened := open()
	res := mustRun(t, reopened, `SELECT * FROM Users;`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["UserName"].String)

	// duplicate detection still goes through the restored primary key index
	_, err := run(t, reopened, `INSERT INTO Users VALUES (1,'Mallory');`)
	require.Error(t, err)
}
