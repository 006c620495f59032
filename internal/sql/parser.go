package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes a token stream and produces Statement values using
// straightforward recursive descent: one method per grammar production,
// each named after the clause it recognizes.
type Parser struct {
	toks []Token
	pos  int
}

// ParseBatch tokenizes src and parses every ';'-separated statement in it,
// in order. A trailing ';' or trailing whitespace is tolerated; an empty
// batch (no statements at all) is an error.
func ParseBatch(src string) ([]Statement, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}

	var stmts []Statement
	for {
		p.skipSemicolons()
		if p.at(TokEOF) {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if !p.at(TokSemicolon) && !p.at(TokEOF) {
			return nil, p.errorf("expected ';' or end of input")
		}
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("sql: empty statement batch")
	}
	return stmts, nil
}

func (p *Parser) skipSemicolons() {
	for p.at(TokSemicolon) {
		p.pos++
	}
}

func (p *Parser) parseStatement() (Statement, error) {
	word := strings.ToUpper(p.peekText())
	switch word {
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "INSERT":
		return p.parseInsert()
	case "DELETE":
		return p.parseDelete()
	case "UPDATE":
		return p.parseUpdate()
	case "SELECT":
		return p.parseSelect()
	default:
		return Statement{}, p.errorf("unrecognized statement keyword %q", p.peekText())
	}
}

func (p *Parser) parseCreate() (Statement, error) {
	p.pos++ // CREATE
	word := strings.ToUpper(p.peekText())
	switch word {
	case "TABLE":
		p.pos++
		stmt, err := p.parseCreateTableBody()
		return Statement{CreateTable: stmt}, err
	case "INDEX":
		p.pos++
		stmt, err := p.parseCreateIndexBody()
		return Statement{CreateIndex: stmt}, err
	default:
		return Statement{}, p.errorf("expected TABLE or INDEX after CREATE, got %q", p.peekText())
	}
}

func (p *Parser) parseCreateTableBody() (*CreateTableStmt, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(TokLParen); err != nil {
		return nil, err
	}

	stmt := &CreateTableStmt{Table: name}
	for {
		word := strings.ToUpper(p.peekText())
		switch word {
		case "PRIMARY":
			p.pos++
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectPunct(TokLParen); err != nil {
				return nil, err
			}
			pk, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if stmt.PrimaryKey != "" {
				return nil, p.errorf("table %s declares more than one primary key", name)
			}
			stmt.PrimaryKey = pk
			if err := p.expectPunct(TokRParen); err != nil {
				return nil, err
			}
		case "FOREIGN":
			p.pos++
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectPunct(TokLParen); err != nil {
				return nil, err
			}
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(TokRParen); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return nil, err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(TokLParen); err != nil {
				return nil, err
			}
			refCol, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(TokRParen); err != nil {
				return nil, err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, ForeignKeyDef{Column: col, ReferencedTable: refTable, ReferencedCol: refCol})
		default:
			colName, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			colType, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, ColumnDef{Name: colName, Type: strings.ToUpper(colType)})
			if err := p.parseInlineConstraints(stmt, colName); err != nil {
				return nil, err
			}
		}

		if p.at(TokComma) {
			p.pos++
			continue
		}
		break
	}
	if err := p.expectPunct(TokRParen); err != nil {
		return nil, err
	}
	if stmt.PrimaryKey == "" {
		return nil, p.errorf("CREATE TABLE %s requires a PRIMARY KEY clause", name)
	}
	return stmt, nil
}

// parseInlineConstraints consumes column-level constraint clauses directly
// after a column declaration: "PRIMARY KEY" and
// "FOREIGN KEY REFERENCES table(col)". Both are also accepted as
// table-level clauses (see parseCreateTableBody); the inline form binds to
// the column just declared.
func (p *Parser) parseInlineConstraints(stmt *CreateTableStmt, colName string) error {
	for {
		switch {
		case p.atKeyword("PRIMARY"):
			p.pos++
			if err := p.expectKeyword("KEY"); err != nil {
				return err
			}
			if stmt.PrimaryKey != "" {
				return p.errorf("table %s declares more than one primary key", stmt.Table)
			}
			stmt.PrimaryKey = colName
		case p.atKeyword("FOREIGN"):
			p.pos++
			if err := p.expectKeyword("KEY"); err != nil {
				return err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return err
			}
			if err := p.expectPunct(TokLParen); err != nil {
				return err
			}
			refCol, err := p.expectIdent()
			if err != nil {
				return err
			}
			if err := p.expectPunct(TokRParen); err != nil {
				return err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, ForeignKeyDef{Column: colName, ReferencedTable: refTable, ReferencedCol: refCol})
		default:
			return nil
		}
	}
}

func (p *Parser) parseCreateIndexBody() (*CreateIndexStmt, error) {
	stmt := &CreateIndexStmt{}
	if !p.atKeyword("ON") {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.Name = name
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Table = table
	if err := p.expectPunct(TokLParen); err != nil {
		return nil, err
	}
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Column = col
	if err := p.expectPunct(TokRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseDrop() (Statement, error) {
	p.pos++ // DROP
	word := strings.ToUpper(p.peekText())
	switch word {
	case "TABLE":
		p.pos++
		name, err := p.expectIdent()
		if err != nil {
			return Statement{}, err
		}
		return Statement{DropTable: &DropTableStmt{Table: name}}, nil
	case "INDEX":
		p.pos++
		name, err := p.expectIdent()
		if err != nil {
			return Statement{}, err
		}
		stmt := &DropIndexStmt{Name: name}
		if p.atKeyword("ON") {
			p.pos++
			table, err := p.expectIdent()
			if err != nil {
				return Statement{}, err
			}
			stmt.Table = table
		}
		return Statement{DropIndex: stmt}, nil
	default:
		return Statement{}, p.errorf("expected TABLE or INDEX after DROP, got %q", p.peekText())
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	p.pos++ // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return Statement{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}
	stmt := &InsertStmt{Table: table}

	if p.at(TokLParen) {
		p.pos++
		for {
			col, err := p.expectIdent()
			if err != nil {
				return Statement{}, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if p.at(TokComma) {
				p.pos++
				continue
			}
			break
		}
		if err := p.expectPunct(TokRParen); err != nil {
			return Statement{}, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return Statement{}, err
	}
	if err := p.expectPunct(TokLParen); err != nil {
		return Statement{}, err
	}
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return Statement{}, err
		}
		stmt.Values = append(stmt.Values, lit)
		if p.at(TokComma) {
			p.pos++
			continue
		}
		break
	}
	if err := p.expectPunct(TokRParen); err != nil {
		return Statement{}, err
	}
	return Statement{Insert: stmt}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	p.pos++ // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return Statement{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}
	stmt := &DeleteStmt{Table: table}
	if p.atKeyword("WHERE") {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return Statement{}, err
		}
		stmt.Where = expr
	}
	return Statement{Delete: stmt}, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	p.pos++ // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}
	stmt := &UpdateStmt{Table: table}
	if err := p.expectKeyword("SET"); err != nil {
		return Statement{}, err
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return Statement{}, err
		}
		if err := p.expectOp("="); err != nil {
			return Statement{}, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return Statement{}, err
		}
		stmt.Set = append(stmt.Set, Assignment{Column: col, Literal: lit})
		if p.at(TokComma) {
			p.pos++
			continue
		}
		break
	}
	if p.atKeyword("WHERE") {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return Statement{}, err
		}
		stmt.Where = expr
	}
	return Statement{Update: stmt}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	p.pos++ // SELECT
	stmt := &SelectStmt{}

	if p.at(TokStar) {
		p.pos++
	} else {
		for {
			if agg, ok, err := p.tryParseAggregate(); err != nil {
				return Statement{}, err
			} else if ok {
				stmt.Aggregates = append(stmt.Aggregates, agg)
			} else {
				col, err := p.expectQualifiedIdent()
				if err != nil {
					return Statement{}, err
				}
				stmt.Columns = append(stmt.Columns, col)
			}
			if p.at(TokComma) {
				p.pos++
				continue
			}
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return Statement{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return Statement{}, err
	}
	stmt.Table = table
	if p.atKeyword("AS") {
		p.pos++
		alias, err := p.expectIdent()
		if err != nil {
			return Statement{}, err
		}
		stmt.Alias = alias
	} else if p.at(TokIdent) && !isClauseKeyword(p.peekText()) {
		alias, _ := p.expectIdent()
		stmt.Alias = alias
	}

	if p.atKeyword("JOIN") {
		p.pos++
		join := &JoinClause{}
		jt, err := p.expectIdent()
		if err != nil {
			return Statement{}, err
		}
		join.Table = jt
		if p.atKeyword("AS") {
			p.pos++
			alias, err := p.expectIdent()
			if err != nil {
				return Statement{}, err
			}
			join.Alias = alias
		} else if p.at(TokIdent) && !isClauseKeyword(p.peekText()) {
			alias, _ := p.expectIdent()
			join.Alias = alias
		}
		if err := p.expectKeyword("ON"); err != nil {
			return Statement{}, err
		}
		left, err := p.expectQualifiedIdent()
		if err != nil {
			return Statement{}, err
		}
		if err := p.expectOp("="); err != nil {
			return Statement{}, err
		}
		right, err := p.expectQualifiedIdent()
		if err != nil {
			return Statement{}, err
		}
		join.LeftCol, join.RightCol = left, right
		stmt.Join = join
	}

	if p.atKeyword("WHERE") {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return Statement{}, err
		}
		stmt.Where = expr
	}

	if p.atKeyword("GROUP") {
		p.pos++
		if err := p.expectKeyword("BY"); err != nil {
			return Statement{}, err
		}
		for {
			col, err := p.expectQualifiedIdent()
			if err != nil {
				return Statement{}, err
			}
			stmt.GroupBy = append(stmt.GroupBy, col)
			if p.at(TokComma) {
				p.pos++
				continue
			}
			break
		}
	}

	if p.atKeyword("HAVING") {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return Statement{}, err
		}
		stmt.Having = expr
	}

	if p.atKeyword("ORDER") {
		p.pos++
		if err := p.expectKeyword("BY"); err != nil {
			return Statement{}, err
		}
		for {
			col, err := p.expectQualifiedIdent()
			if err != nil {
				return Statement{}, err
			}
			term := OrderTerm{Column: col}
			if p.atKeyword("DESC") {
				p.pos++
				term.Desc = true
			} else if p.atKeyword("ASC") {
				p.pos++
			}
			stmt.OrderBy = append(stmt.OrderBy, term)
			if p.at(TokComma) {
				p.pos++
				continue
			}
			break
		}
	}

	return Statement{Select: stmt}, nil
}

var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"JOIN": true, "ON": true,
}

func isClauseKeyword(word string) bool {
	return clauseKeywords[strings.ToUpper(word)]
}

// tryParseAggregate recognizes FUNC(col|*) [AS alias] at the current
// position without consuming input if it isn't one (a plain qualified
// identifier that happens to precede a comma is not an aggregate call).
func (p *Parser) tryParseAggregate() (AggregateCall, bool, error) {
	if !p.at(TokIdent) {
		return AggregateCall{}, false, nil
	}
	fn := strings.ToUpper(p.peekText())
	switch fn {
	case "MIN", "MAX", "SUM", "AVG", "COUNT":
	default:
		return AggregateCall{}, false, nil
	}
	if p.peekAt(1).Kind != TokLParen {
		return AggregateCall{}, false, nil
	}
	p.pos += 2 // fn, (

	call := AggregateCall{Func: fn}
	if p.at(TokStar) {
		p.pos++
		call.Column = "*"
	} else {
		col, err := p.expectQualifiedIdent()
		if err != nil {
			return AggregateCall{}, false, err
		}
		call.Column = col
	}
	if err := p.expectPunct(TokRParen); err != nil {
		return AggregateCall{}, false, err
	}
	call.As = defaultAggregateName(fn, call.Column)
	if p.atKeyword("AS") {
		p.pos++
		alias, err := p.expectIdent()
		if err != nil {
			return AggregateCall{}, false, err
		}
		call.As = alias
	}
	return call, true, nil
}

// defaultAggregateName is the output field an unaliased aggregate binds its
// result to: the bare aggregated column name (SUM(Amount) emits Amount),
// except COUNT(*), which has no column to borrow and keeps its call form.
func defaultAggregateName(fn, column string) string {
	if column == "*" {
		return fn + "(*)"
	}
	if dot := strings.LastIndexByte(column, '.'); dot >= 0 {
		return column[dot+1:]
	}
	return column
}

// parseExpr parses a chain of terms joined by AND/OR, left-associative,
// with no precedence distinction between the two (parentheses disambiguate
// when it matters, matching the grammar's flat boolean-predicate shape).
func (p *Parser) parseExpr() (*Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") || p.atKeyword("OR") {
		op := strings.ToUpper(p.peekText())
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Expr{BoolOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (*Expr, error) {
	if p.at(TokLParen) {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(TokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	// A HAVING term's left-hand side may be an aggregate call (e.g.
	// "SUM(Amount) > 100"); it lowers to the default output field name an
	// unaliased select-list aggregate binds its result to, so the predicate
	// evaluator resolves it by a plain record-key lookup. An AS alias given
	// to that aggregate in the select list is not consulted here.
	if agg, ok, err := p.tryParseAggregate(); err != nil {
		return nil, err
	} else if ok {
		if !p.at(TokOp) {
			return nil, p.errorf("expected comparison operator, got %q", p.peekText())
		}
		op := p.peekText()
		p.pos++
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Expr{Column: agg.As, Op: op, Literal: &lit}, nil
	}

	col, err := p.expectQualifiedIdent()
	if err != nil {
		return nil, err
	}
	if !p.at(TokOp) {
		return nil, p.errorf("expected comparison operator, got %q", p.peekText())
	}
	op := p.peekText()
	p.pos++

	if p.at(TokIdent) && !strings.EqualFold(p.peekText(), "NULL") {
		right, err := p.expectQualifiedIdent()
		if err != nil {
			return nil, err
		}
		return &Expr{Column: col, Op: op, RightIdent: right}, nil
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Expr{Column: col, Op: op, Literal: &lit}, nil
}

func (p *Parser) parseLiteral() (Literal, error) {
	tok := p.peek()
	if tok.Kind == TokIdent && strings.EqualFold(tok.Text, "NULL") {
		p.pos++
		return Literal{IsNull: true}, nil
	}
	switch tok.Kind {
	case TokInt:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return Literal{}, p.errorf("invalid integer literal %q", tok.Text)
		}
		p.pos++
		return Literal{Kind: TokInt, Int: n}, nil
	case TokFloat:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Literal{}, p.errorf("invalid decimal literal %q", tok.Text)
		}
		p.pos++
		return Literal{Kind: TokFloat, Float: f}, nil
	case TokString:
		p.pos++
		return Literal{Kind: TokString, Str: tok.Text}, nil
	default:
		return Literal{}, p.errorf("expected a literal, got %q", tok.Text)
	}
}

// expectQualifiedIdent parses identifier or identifier.identifier.
func (p *Parser) expectQualifiedIdent() (string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if p.at(TokDot) {
		p.pos++
		second, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		return first + "." + second, nil
	}
	return first, nil
}

func (p *Parser) expectIdent() (string, error) {
	if !p.at(TokIdent) {
		return "", p.errorf("expected identifier, got %q", p.peekText())
	}
	text := p.peekText()
	p.pos++
	return text, nil
}

func (p *Parser) expectKeyword(word string) error {
	if !p.atKeyword(word) {
		return p.errorf("expected %q, got %q", word, p.peekText())
	}
	p.pos++
	return nil
}

func (p *Parser) expectPunct(kind TokenKind) error {
	if !p.at(kind) {
		return p.errorf("expected %q, got %q", punctName(kind), p.peekText())
	}
	p.pos++
	return nil
}

func (p *Parser) expectOp(op string) error {
	if !p.at(TokOp) || p.peekText() != op {
		return p.errorf("expected operator %q, got %q", op, p.peekText())
	}
	p.pos++
	return nil
}

func (p *Parser) atKeyword(word string) bool {
	return p.at(TokIdent) && strings.EqualFold(p.peekText(), word)
}

func (p *Parser) at(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[idx]
}

func (p *Parser) peekText() string {
	return p.peek().Text
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("sql: %s (at position %d)", fmt.Sprintf(format, args...), p.peek().Pos)
}

func punctName(kind TokenKind) string {
	switch kind {
	case TokLParen:
		return "("
	case TokRParen:
		return ")"
	case TokComma:
		return ","
	case TokDot:
		return "."
	case TokSemicolon:
		return ";"
	default:
		return "token"
	}
}
