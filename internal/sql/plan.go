package sql

import (
	"strings"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
	"github.com/sqlitoy/sqlitoy/internal/engine"
)

// Plan lowers one parsed Statement into an engine.Statement, ready to run
// against an Engine inside a batch. Most clauses (literal typing,
// predicate column resolution) are only resolvable once the catalog is
// available, so the returned value defers that work to its Execute method
// rather than doing it here.
func Plan(stmt Statement) (engine.Statement, error) {
	switch {
	case stmt.CreateTable != nil:
		return &createTableStmt{ast: stmt.CreateTable}, nil
	case stmt.DropTable != nil:
		return &dropTableStmt{ast: stmt.DropTable}, nil
	case stmt.CreateIndex != nil:
		return &createIndexStmt{ast: stmt.CreateIndex}, nil
	case stmt.DropIndex != nil:
		return &dropIndexStmt{ast: stmt.DropIndex}, nil
	case stmt.Insert != nil:
		return &insertStmt{ast: stmt.Insert}, nil
	case stmt.Delete != nil:
		return &deleteStmt{ast: stmt.Delete}, nil
	case stmt.Update != nil:
		return &updateStmt{ast: stmt.Update}, nil
	case stmt.Select != nil:
		return &selectStmt{ast: stmt.Select}, nil
	default:
		return nil, engine.ParseErrorf("empty statement")
	}
}

// PlanBatch parses src and plans every statement in it.
func PlanBatch(src string) ([]engine.Statement, error) {
	stmts, err := ParseBatch(src)
	if err != nil {
		return nil, engine.ParseErrorf("%v", err)
	}
	out := make([]engine.Statement, 0, len(stmts))
	for _, s := range stmts {
		plan, err := Plan(s)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	return out, nil
}

type createTableStmt struct{ ast *CreateTableStmt }

func (s *createTableStmt) Execute(e *engine.Engine) (engine.Result, error) {
	cols := make([]catalog.Column, len(s.ast.Columns))
	for i, c := range s.ast.Columns {
		t, ok := catalog.ParseType(c.Type)
		if !ok {
			return engine.Result{}, engine.SchemaErrorf("unknown column type %q for column %q", c.Type, c.Name)
		}
		cols[i] = catalog.Column{Name: c.Name, Type: t}
	}
	fks := make([]catalog.ForeignKey, len(s.ast.ForeignKeys))
	for i, fk := range s.ast.ForeignKeys {
		fks[i] = catalog.ForeignKey{Column: fk.Column, ReferencedTable: fk.ReferencedTable, ReferencedCol: fk.ReferencedCol}
	}
	err := e.CreateTable(s.ast.Table, cols, s.ast.PrimaryKey, fks)
	return engine.Result{Kind: engine.NoResult}, err
}

type dropTableStmt struct{ ast *DropTableStmt }

func (s *dropTableStmt) Execute(e *engine.Engine) (engine.Result, error) {
	return engine.Result{Kind: engine.NoResult}, e.DropTable(s.ast.Table)
}

type createIndexStmt struct{ ast *CreateIndexStmt }

func (s *createIndexStmt) Execute(e *engine.Engine) (engine.Result, error) {
	_, err := e.CreateIndex(s.ast.Table, s.ast.Column, s.ast.Name)
	return engine.Result{Kind: engine.NoResult}, err
}

type dropIndexStmt struct{ ast *DropIndexStmt }

func (s *dropIndexStmt) Execute(e *engine.Engine) (engine.Result, error) {
	if s.ast.Table != "" && !e.TableExists(s.ast.Table) {
		return engine.Result{}, engine.SchemaErrorf("table %q does not exist", s.ast.Table)
	}
	return engine.Result{Kind: engine.NoResult}, e.DropIndex(s.ast.Name)
}

type insertStmt struct{ ast *InsertStmt }

func (s *insertStmt) Execute(e *engine.Engine) (engine.Result, error) {
	cols, err := e.TableColumns(s.ast.Table)
	if err != nil {
		return engine.Result{}, err
	}

	if len(s.ast.Columns) == 0 {
		if len(s.ast.Values) != len(cols) {
			return engine.Result{}, engine.ValueErrorf("row length %d does not match the number of table columns (%d)", len(s.ast.Values), len(cols))
		}
		row := make([]catalog.Value, len(cols))
		for i, c := range cols {
			row[i] = literalToValue(s.ast.Values[i], c.Type)
		}
		return engine.Result{Kind: engine.NoResult}, e.Insert(s.ast.Table, row)
	}

	if len(s.ast.Columns) != len(s.ast.Values) {
		return engine.Result{}, engine.ValueErrorf("column list length %d does not match value list length %d", len(s.ast.Columns), len(s.ast.Values))
	}
	row := make([]catalog.Value, len(cols))
	for i, c := range cols {
		row[i] = catalog.NewNull(c.Type)
	}
	for i, colName := range s.ast.Columns {
		idx := -1
		for j, c := range cols {
			if c.Name == colName {
				idx = j
				break
			}
		}
		if idx < 0 {
			return engine.Result{}, engine.SchemaErrorf("column %q does not exist in table %q", colName, s.ast.Table)
		}
		row[idx] = literalToValue(s.ast.Values[i], cols[idx].Type)
	}
	return engine.Result{Kind: engine.NoResult}, e.Insert(s.ast.Table, row)
}

type deleteStmt struct{ ast *DeleteStmt }

func (s *deleteStmt) Execute(e *engine.Engine) (engine.Result, error) {
	pred, err := buildPredicate(e, s.ast.Where, []string{s.ast.Table})
	if err != nil {
		return engine.Result{}, err
	}
	count, err := e.Delete(s.ast.Table, pred)
	return engine.Result{Kind: engine.CountResult, Count: count}, err
}

type updateStmt struct{ ast *UpdateStmt }

func (s *updateStmt) Execute(e *engine.Engine) (engine.Result, error) {
	updates := make([]engine.Update, len(s.ast.Set))
	for i, a := range s.ast.Set {
		t, err := e.ColumnType(s.ast.Table, a.Column)
		if err != nil {
			return engine.Result{}, err
		}
		v := literalToValue(a.Literal, t)
		if !v.Matches(t) {
			return engine.Result{}, engine.ConstraintErrorf("column %q expects type %s, got %s", a.Column, t, v.Type)
		}
		updates[i] = engine.Update{Column: a.Column, Literal: v, IsLiteral: true}
	}
	pred, err := buildPredicate(e, s.ast.Where, []string{s.ast.Table})
	if err != nil {
		return engine.Result{}, err
	}
	count, err := e.UpdateRows(s.ast.Table, updates, pred)
	return engine.Result{Kind: engine.CountResult, Count: count}, err
}

type selectStmt struct{ ast *SelectStmt }

func (s *selectStmt) Execute(e *engine.Engine) (engine.Result, error) {
	aggregates := make([]engine.Aggregate, len(s.ast.Aggregates))
	for i, a := range s.ast.Aggregates {
		aggregates[i] = engine.Aggregate{Func: engine.AggFunc(a.Func), Column: a.Column, As: a.As}
	}
	orderBy := make([]engine.OrderKey, len(s.ast.OrderBy))
	for i, o := range s.ast.OrderBy {
		orderBy[i] = engine.OrderKey{Column: o.Column, Desc: o.Desc}
	}

	if s.ast.Join != nil {
		tables := []string{s.ast.Table, s.ast.Join.Table}
		where, err := buildPredicate(e, s.ast.Where, tables)
		if err != nil {
			return engine.Result{}, err
		}
		having, err := buildPredicate(e, s.ast.Having, tables)
		if err != nil {
			return engine.Result{}, err
		}
		leftCol, rightCol := orientJoinColumns(s.ast)
		return e.JoinSelect(s.ast.Table, s.ast.Alias, s.ast.Join.Table, s.ast.Join.Alias, leftCol, rightCol, s.ast.Columns, where, s.ast.GroupBy, aggregates, having, orderBy)
	}

	// A single-table query's records are keyed by bare column name (no
	// alias qualification), so any "table.column" or "alias.column"
	// reference in the column list, WHERE, GROUP BY, HAVING, or ORDER BY
	// is reduced to its bare form before reaching the executor.
	tables := []string{s.ast.Table}
	bareExpr(s.ast.Where)
	bareExpr(s.ast.Having)
	where, err := buildPredicate(e, s.ast.Where, tables)
	if err != nil {
		return engine.Result{}, err
	}
	having, err := buildPredicate(e, s.ast.Having, tables)
	if err != nil {
		return engine.Result{}, err
	}
	for i := range aggregates {
		if aggregates[i].Column == "*" {
			continue
		}
		aggregates[i].Column = bareName(aggregates[i].Column)
		if _, err := e.ColumnType(s.ast.Table, aggregates[i].Column); err != nil {
			return engine.Result{}, err
		}
	}
	for _, g := range s.ast.GroupBy {
		if _, err := e.ColumnType(s.ast.Table, bareName(g)); err != nil {
			return engine.Result{}, err
		}
	}

	// Unlike a join result (where a projected name absent from either side
	// is skipped silently), a single-table SELECT's column list names this
	// table's own schema directly, so an unrecognized column is an error
	// rather than a silent drop.
	for _, c := range s.ast.Columns {
		bare := bareName(c)
		if _, err := e.ColumnType(s.ast.Table, bare); err != nil {
			return engine.Result{}, err
		}
	}

	return e.Select(s.ast.Table, bareColumns(s.ast.Columns), where, bareColumns(s.ast.GroupBy), aggregates, having, bareOrderBy(orderBy))
}

// orientJoinColumns pairs the ON clause's two column references with the
// FROM and JOIN tables they belong to. "ON Orders.UserID = Users.UserID"
// written against "FROM Users JOIN Orders" still binds each side to its own
// table; an unqualified reference keeps its written position.
func orientJoinColumns(sel *SelectStmt) (string, string) {
	left, right := sel.Join.LeftCol, sel.Join.RightCol
	lq, rq := qualifier(left), qualifier(right)
	if lq != "" && rq != "" &&
		matchesTable(lq, sel.Join.Table, sel.Join.Alias) &&
		matchesTable(rq, sel.Table, sel.Alias) {
		return right, left
	}
	return left, right
}

func qualifier(name string) string {
	if dot := lastDot(name); dot >= 0 {
		return name[:dot]
	}
	return ""
}

func matchesTable(q, table, alias string) bool {
	return q == table || (alias != "" && q == alias)
}

func bareExpr(expr *Expr) {
	if expr == nil {
		return
	}
	if !expr.IsLeaf() {
		bareExpr(expr.Left)
		bareExpr(expr.Right)
		return
	}
	expr.Column = bareName(expr.Column)
	if expr.RightIdent != "" {
		expr.RightIdent = bareName(expr.RightIdent)
	}
}

func bareColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = bareName(c)
	}
	return out
}

func bareOrderBy(keys []engine.OrderKey) []engine.OrderKey {
	out := make([]engine.OrderKey, len(keys))
	for i, k := range keys {
		out[i] = engine.OrderKey{Column: bareName(k.Column), Desc: k.Desc}
	}
	return out
}

func bareName(s string) string {
	if dot := lastDot(s); dot >= 0 {
		return s[dot+1:]
	}
	return s
}

// literalToValue converts a parsed literal to a catalog.Value typed as
// want, widening an INT literal to DOUBLE where needed (the same rule
// catalog.CoerceLiteral applies on INSERT).
func literalToValue(lit Literal, want catalog.Type) catalog.Value {
	if lit.IsNull {
		return catalog.NewNull(want)
	}
	switch lit.Kind {
	case TokInt:
		if want == catalog.Double {
			return catalog.NewDouble(float64(lit.Int))
		}
		return catalog.NewInt(lit.Int)
	case TokFloat:
		return catalog.NewDouble(lit.Float)
	default:
		return catalog.NewString(lit.Str)
	}
}

// buildPredicate lowers a parsed Expr into the engine's tagged predicate
// variant, resolving each literal's type against the schema of the tables
// involved (a bare column name is looked up in each candidate table in
// turn; the first match wins, since only single-column-name joins are
// supported and a genuine ambiguity would mean the query itself is
// ambiguous).
func buildPredicate(e *engine.Engine, expr *Expr, tables []string) (*catalog.Predicate, error) {
	if expr == nil {
		return nil, nil
	}
	if !expr.IsLeaf() {
		left, err := buildPredicate(e, expr.Left, tables)
		if err != nil {
			return nil, err
		}
		right, err := buildPredicate(e, expr.Right, tables)
		if err != nil {
			return nil, err
		}
		return catalog.NewCompound(catalog.BoolOp(expr.BoolOp), left, right), nil
	}

	if expr.RightIdent != "" {
		return catalog.NewColumnCompare(expr.Column, catalog.Op(expr.Op), expr.RightIdent), nil
	}

	// A HAVING term's column may be a computed field with no schema entry.
	// A name containing '(' (such as COUNT(*)) is treated as one: its
	// literal keeps its own parsed type instead of being coerced to a
	// column's declared type. Any other name, an AS alias included, is
	// resolved against the tables' schema and fails if no table has it.
	if isComputedColumn(expr.Column) {
		value := literalToValue(*expr.Literal, literalNaturalType(*expr.Literal))
		return catalog.NewSimple(expr.Column, catalog.Op(expr.Op), value), nil
	}

	colType, err := resolveColumnType(e, tables, expr.Column)
	if err != nil {
		return nil, err
	}
	value := literalToValue(*expr.Literal, colType)
	return catalog.NewSimple(expr.Column, catalog.Op(expr.Op), value), nil
}

func isComputedColumn(name string) bool {
	return strings.ContainsRune(name, '(')
}

func literalNaturalType(lit Literal) catalog.Type {
	switch lit.Kind {
	case TokFloat:
		return catalog.Double
	case TokString:
		return catalog.String
	default:
		return catalog.Int
	}
}

func resolveColumnType(e *engine.Engine, tables []string, column string) (catalog.Type, error) {
	bare := column
	if dot := lastDot(column); dot >= 0 {
		bare = column[dot+1:]
	}
	for _, t := range tables {
		if !e.TableExists(t) {
			continue
		}
		if typ, err := e.ColumnType(t, bare); err == nil {
			return typ, nil
		}
	}
	return 0, engine.SchemaErrorf("column %q not found in %v", column, tables)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
