package memdrv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

type tokenType int

const (
	tokIdent tokenType = iota
	tokNumber
	tokString
	tokPlaceholder
	tokStar
	tokComma
	tokDot
	tokLParen
	tokRParen
	tokOp
	tokEOF
)

type token struct {
	typ  tokenType
	text string
}

func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '`':
			end := strings.IndexByte(text[i+1:], '`')
			if end < 0 {
				return nil, fmt.Errorf("memdrv: unterminated quoted name at %d", i)
			}
			toks = append(toks, token{tokIdent, text[i+1 : i+1+end]})
			i += end + 2
		case c == '\'':
			// Compiler output never inlines strings, but escape output does.
			var b strings.Builder
			j := i + 1
			for j < len(text) && text[j] != '\'' {
				if text[j] == '\\' && j+1 < len(text) {
					j++
				}
				b.WriteByte(text[j])
				j++
			}
			if j >= len(text) {
				return nil, fmt.Errorf("memdrv: unterminated string at %d", i)
			}
			toks = append(toks, token{tokString, b.String()})
			i = j + 1
		case c == '?':
			toks = append(toks, token{tokPlaceholder, "?"})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, "."})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '=':
			toks = append(toks, token{tokOp, "="})
			i++
		case c == '<':
			if i+1 < len(text) && (text[i+1] == '>' || text[i+1] == '=') {
				toks = append(toks, token{tokOp, text[i : i+2]})
				i += 2
			} else {
				toks = append(toks, token{tokOp, "<"})
				i++
			}
		case c == '>':
			if i+1 < len(text) && text[i+1] == '=' {
				toks = append(toks, token{tokOp, ">="})
				i += 2
			} else {
				toks = append(toks, token{tokOp, ">"})
				i++
			}
		case c >= '0' && c <= '9' || c == '-':
			j := i + 1
			for j < len(text) && (text[j] >= '0' && text[j] <= '9' || text[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, text[i:j]})
			i = j
		case isWordByte(c):
			j := i + 1
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, text[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("memdrv: unexpected character %q at %d", c, i)
		}
	}
	return append(toks, token{tokEOF, ""}), nil
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// Statement forms, one per SQL surface the dialect emits.

type statement interface{ memStmt() }

type aggKind int

const (
	aggNone aggKind = iota
	aggCount
	aggCountDistinct
	aggMax
)

type orderKey struct {
	field string
	desc  bool
}

// cond is a where-clause node; a leaf when parts is nil.
type cond struct {
	parts []*cond
	or    bool

	field string
	op    string
	value any

	// never marks the constant-false predicate (1=0) used by
	// schema-only queries.
	never bool
}

// lastInsertIDStmt is SELECT LAST_INSERT_ID(), answered from per-connection
// state rather than table data.
type lastInsertIDStmt struct{}

type selectStmt struct {
	database, table string
	column          string // single projected column; empty selects *
	agg             aggKind
	aggField        string
	where           *cond
	groupBy         string
	orderBy         []orderKey
	limit, offset   int
}

type insertStmt struct {
	database, table string
	columns         []string
	values          []any
}

type setPair struct {
	column string
	value  any
}

type updateStmt struct {
	database, table string
	sets            []setPair
	where           *cond
}

type deleteStmt struct {
	database, table string
	where           *cond
}

type createTableStmt struct {
	database, table string
	columns         []driver.Column
}

type createIndexStmt struct {
	database, table, column string
}

type dropTableStmt struct {
	database, table string
}

type showTablesStmt struct {
	database string
}

func (*selectStmt) memStmt()       {}
func (*lastInsertIDStmt) memStmt() {}
func (*insertStmt) memStmt()       {}
func (*updateStmt) memStmt()       {}
func (*deleteStmt) memStmt()       {}
func (*createTableStmt) memStmt()  {}
func (*createIndexStmt) memStmt()  {}
func (*dropTableStmt) memStmt()    {}
func (*showTablesStmt) memStmt()   {}

type parser struct {
	toks   []token
	pos    int
	params []any
	used   int
}

func parse(text string, params []any) (statement, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, params: params}
	var stmt statement
	switch kw := strings.ToUpper(p.peek().text); kw {
	case "SELECT":
		if t := p.toks[1]; t.typ == tokIdent && strings.EqualFold(t.text, "LAST_INSERT_ID") {
			stmt, err = p.parseLastInsertID()
		} else {
			stmt, err = p.parseSelect()
		}
	case "INSERT":
		stmt, err = p.parseInsert()
	case "UPDATE":
		stmt, err = p.parseUpdate()
	case "DELETE":
		stmt, err = p.parseDelete()
	case "CREATE":
		stmt, err = p.parseCreate()
	case "DROP":
		stmt, err = p.parseDrop()
	case "SHOW":
		stmt, err = p.parseShow()
	default:
		return nil, fmt.Errorf("memdrv: unsupported statement %q", text)
	}
	if err != nil {
		return nil, fmt.Errorf("memdrv: parse %q: %w", text, err)
	}
	if p.peek().typ != tokEOF {
		return nil, fmt.Errorf("memdrv: parse %q: trailing input at %q", text, p.peek().text)
	}
	return stmt, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(want string) error {
	t := p.next()
	if t.typ != tokIdent || !strings.EqualFold(t.text, want) {
		return fmt.Errorf("expected %s, got %q", want, t.text)
	}
	return nil
}

func (p *parser) atKeyword(want string) bool {
	t := p.peek()
	return t.typ == tokIdent && strings.EqualFold(t.text, want)
}

func (p *parser) ident() (string, error) {
	t := p.next()
	if t.typ != tokIdent {
		return "", fmt.Errorf("expected identifier, got %q", t.text)
	}
	return t.text, nil
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, fmt.Errorf("unexpected token %q", t.text)
	}
	return t, nil
}

// qualifiedName parses `db`.`table`.
func (p *parser) qualifiedName() (database, table string, err error) {
	database, err = p.ident()
	if err != nil {
		return "", "", err
	}
	if _, err = p.expect(tokDot); err != nil {
		return "", "", err
	}
	table, err = p.ident()
	return database, table, err
}

// operand resolves a bound parameter or a literal value.
func (p *parser) operand() (any, error) {
	t := p.next()
	switch t.typ {
	case tokPlaceholder:
		if p.used >= len(p.params) {
			return nil, fmt.Errorf("statement has more placeholders than parameters (%d)", len(p.params))
		}
		v := p.params[p.used]
		p.used++
		return v, nil
	case tokString:
		return t.text, nil
	case tokNumber:
		return parseNumber(t.text)
	case tokIdent:
		if strings.EqualFold(t.text, "NULL") {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected identifier %q as value", t.text)
	default:
		return nil, fmt.Errorf("unexpected token %q as value", t.text)
	}
}

func parseNumber(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (p *parser) parseLastInsertID() (*lastInsertIDStmt, error) {
	if err := p.keyword("SELECT"); err != nil {
		return nil, err
	}
	if _, err := p.ident(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return &lastInsertIDStmt{}, nil
}

func (p *parser) parseSelect() (*selectStmt, error) {
	stmt := &selectStmt{limit: -1, offset: -1}
	if err := p.keyword("SELECT"); err != nil {
		return nil, err
	}
	switch t := p.peek(); {
	case t.typ == tokStar:
		p.next()
	case t.typ == tokIdent && strings.EqualFold(t.text, "COUNT"):
		p.next()
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		if p.peek().typ == tokStar {
			p.next()
			stmt.agg = aggCount
		} else {
			if err := p.keyword("DISTINCT"); err != nil {
				return nil, err
			}
			field, err := p.ident()
			if err != nil {
				return nil, err
			}
			stmt.agg = aggCountDistinct
			stmt.aggField = field
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	case t.typ == tokIdent && strings.EqualFold(t.text, "MAX"):
		p.next()
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		field, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		stmt.agg = aggMax
		stmt.aggField = field
	default:
		column, err := p.ident()
		if err != nil {
			return nil, err
		}
		stmt.column = column
	}
	if err := p.keyword("FROM"); err != nil {
		return nil, err
	}
	var err error
	stmt.database, stmt.table, err = p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("WHERE") {
		p.next()
		if stmt.where, err = p.parseCond(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("GROUP") {
		p.next()
		if err := p.keyword("BY"); err != nil {
			return nil, err
		}
		if stmt.groupBy, err = p.ident(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("ORDER") {
		p.next()
		if err := p.keyword("BY"); err != nil {
			return nil, err
		}
		for {
			field, err := p.ident()
			if err != nil {
				return nil, err
			}
			key := orderKey{field: field}
			if p.atKeyword("ASC") {
				p.next()
			} else if p.atKeyword("DESC") {
				p.next()
				key.desc = true
			}
			stmt.orderBy = append(stmt.orderBy, key)
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
	}
	if p.atKeyword("LIMIT") {
		p.next()
		if stmt.limit, err = p.bound(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("OFFSET") {
		p.next()
		if stmt.offset, err = p.bound(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// bound parses a LIMIT/OFFSET count, clamping the dialect's no-limit
// sentinel to the int range.
func (p *parser) bound() (int, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(t.text, 10, 64)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(n), nil
}

func (p *parser) parseCond() (*cond, error) {
	if p.peek().typ == tokLParen {
		p.next()
		node := &cond{}
		first := true
		for {
			part, err := p.parseCond()
			if err != nil {
				return nil, err
			}
			node.parts = append(node.parts, part)
			if p.peek().typ == tokRParen {
				p.next()
				return node, nil
			}
			switch {
			case p.atKeyword("AND"):
				p.next()
				if !first && node.or {
					return nil, fmt.Errorf("mixed AND/OR inside one group")
				}
			case p.atKeyword("OR"):
				p.next()
				if !first && !node.or {
					return nil, fmt.Errorf("mixed AND/OR inside one group")
				}
				node.or = true
			default:
				return nil, fmt.Errorf("expected AND, OR or ), got %q", p.peek().text)
			}
			first = false
		}
	}
	if p.peek().typ == tokNumber {
		// The schema probe predicate: <number>=<number>.
		left := p.next()
		if _, err := p.expect(tokOp); err != nil {
			return nil, err
		}
		right, err := p.expect(tokNumber)
		if err != nil {
			return nil, err
		}
		return &cond{never: left.text != right.text}, nil
	}
	field, err := p.ident()
	if err != nil {
		return nil, err
	}
	op, err := p.expect(tokOp)
	if err != nil {
		return nil, err
	}
	value, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &cond{field: field, op: op.text, value: value}, nil
}

func (p *parser) parseInsert() (*insertStmt, error) {
	if err := p.keyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.keyword("INTO"); err != nil {
		return nil, err
	}
	stmt := &insertStmt{}
	var err error
	if stmt.database, stmt.table, err = p.qualifiedName(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	for {
		column, err := p.ident()
		if err != nil {
			return nil, err
		}
		stmt.columns = append(stmt.columns, column)
		if p.peek().typ != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if err := p.keyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	for {
		v, err := p.operand()
		if err != nil {
			return nil, err
		}
		stmt.values = append(stmt.values, v)
		if p.peek().typ != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if len(stmt.values) != len(stmt.columns) {
		return nil, fmt.Errorf("%d columns but %d values", len(stmt.columns), len(stmt.values))
	}
	return stmt, nil
}

func (p *parser) parseUpdate() (*updateStmt, error) {
	if err := p.keyword("UPDATE"); err != nil {
		return nil, err
	}
	stmt := &updateStmt{}
	var err error
	if stmt.database, stmt.table, err = p.qualifiedName(); err != nil {
		return nil, err
	}
	if err := p.keyword("SET"); err != nil {
		return nil, err
	}
	for {
		column, err := p.ident()
		if err != nil {
			return nil, err
		}
		if op, err := p.expect(tokOp); err != nil || op.text != "=" {
			return nil, fmt.Errorf("expected = after %s", column)
		}
		v, err := p.operand()
		if err != nil {
			return nil, err
		}
		stmt.sets = append(stmt.sets, setPair{column: column, value: v})
		if p.peek().typ != tokComma {
			break
		}
		p.next()
	}
	if p.atKeyword("WHERE") {
		p.next()
		if stmt.where, err = p.parseCond(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseDelete() (*deleteStmt, error) {
	if err := p.keyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.keyword("FROM"); err != nil {
		return nil, err
	}
	stmt := &deleteStmt{}
	var err error
	if stmt.database, stmt.table, err = p.qualifiedName(); err != nil {
		return nil, err
	}
	if p.atKeyword("WHERE") {
		p.next()
		if stmt.where, err = p.parseCond(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseCreate() (statement, error) {
	if err := p.keyword("CREATE"); err != nil {
		return nil, err
	}
	if p.atKeyword("INDEX") {
		p.next()
		if _, err := p.ident(); err != nil { // index name
			return nil, err
		}
		if err := p.keyword("ON"); err != nil {
			return nil, err
		}
		stmt := &createIndexStmt{}
		var err error
		if stmt.database, stmt.table, err = p.qualifiedName(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		if stmt.column, err = p.ident(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return stmt, nil
	}
	if err := p.keyword("TABLE"); err != nil {
		return nil, err
	}
	stmt := &createTableStmt{}
	var err error
	if stmt.database, stmt.table, err = p.qualifiedName(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmt.columns = append(stmt.columns, col)
		if p.peek().typ != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseColumnDef consumes one column definition: name, type with optional
// arguments, then modifier keywords until the next comma or closing paren.
func (p *parser) parseColumnDef() (driver.Column, error) {
	var col driver.Column
	name, err := p.ident()
	if err != nil {
		return col, err
	}
	col.Name = name
	base, err := p.ident()
	if err != nil {
		return col, err
	}
	var args []int
	if p.peek().typ == tokLParen {
		p.next()
		for {
			t, err := p.expect(tokNumber)
			if err != nil {
				return col, err
			}
			n, err := strconv.Atoi(t.text)
			if err != nil {
				return col, err
			}
			args = append(args, n)
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRParen); err != nil {
			return col, err
		}
	}
	unsigned := false
	for p.peek().typ == tokIdent {
		switch kw := strings.ToUpper(p.next().text); kw {
		case "UNSIGNED":
			unsigned = true
		case "PRECISION": // DOUBLE PRECISION
		case "AUTO_INCREMENT":
			col.IsAutoIncrement = true
		case "PRIMARY":
			if err := p.keyword("KEY"); err != nil {
				return col, err
			}
			col.IsKey = true
		case "UNIQUE":
			col.IsUnique = true
		case "NOT":
			if err := p.keyword("NULL"); err != nil {
				return col, err
			}
		case "NULL":
		default:
			return col, fmt.Errorf("unknown column modifier %q", kw)
		}
	}
	col.DataType, col.Length, err = mapColumnType(strings.ToUpper(base), args, unsigned)
	return col, err
}

func mapColumnType(base string, args []int, unsigned bool) (fields.DataType, int64, error) {
	length := int64(0)
	if len(args) > 0 {
		length = int64(args[0])
	}
	switch base {
	case "TINYINT":
		if len(args) == 1 && args[0] == 1 && !unsigned {
			return fields.TypeBool, 0, nil
		}
		if unsigned {
			return fields.TypeUInt8, 0, nil
		}
		return fields.TypeInt8, 0, nil
	case "SMALLINT":
		if unsigned {
			return fields.TypeUInt16, 0, nil
		}
		return fields.TypeInt16, 0, nil
	case "INT", "INTEGER":
		if unsigned {
			return fields.TypeUInt32, 0, nil
		}
		return fields.TypeInt32, 0, nil
	case "BIGINT":
		if unsigned {
			return fields.TypeUInt64, 0, nil
		}
		return fields.TypeInt64, 0, nil
	case "FLOAT":
		return fields.TypeFloat32, 0, nil
	case "DOUBLE":
		return fields.TypeFloat64, 0, nil
	case "VARCHAR", "LONGTEXT", "TEXT":
		return fields.TypeString, length, nil
	case "VARBINARY", "LONGBLOB", "BLOB":
		return fields.TypeBinary, length, nil
	case "DECIMAL", "NUMERIC":
		return fields.TypeDecimal, length, nil
	case "DATETIME", "TIMESTAMP":
		return fields.TypeDateTime, 0, nil
	default:
		return fields.TypeUnknown, 0, fmt.Errorf("unknown column type %q", base)
	}
}

func (p *parser) parseDrop() (*dropTableStmt, error) {
	if err := p.keyword("DROP"); err != nil {
		return nil, err
	}
	if err := p.keyword("TABLE"); err != nil {
		return nil, err
	}
	stmt := &dropTableStmt{}
	var err error
	stmt.database, stmt.table, err = p.qualifiedName()
	return stmt, err
}

func (p *parser) parseShow() (*showTablesStmt, error) {
	if err := p.keyword("SHOW"); err != nil {
		return nil, err
	}
	if err := p.keyword("TABLES"); err != nil {
		return nil, err
	}
	if err := p.keyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &showTablesStmt{database: name}, nil
}
