package search

import (
	"errors"
	"testing"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

func testLayout(t *testing.T) *fields.Layout {
	t.Helper()
	l, err := fields.NewLayout("animals", true,
		fields.Field{Name: "ID", DataType: fields.TypeInt64, Flags: fields.FlagID | fields.FlagAutoIncrement},
		fields.Field{Name: "Name", DataType: fields.TypeString, MaximumLength: 64},
		fields.Field{Name: "Legs", DataType: fields.TypeInt64},
		fields.Field{Name: "Born", DataType: fields.TypeDateTime, DateTimeType: fields.DateTimeBigIntTicks},
	)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func TestSelectWithoutFilter(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	cmd, err := c.Select(testLayout(t), "zoo", "animals", nil, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if cmd.Text != "SELECT * FROM `zoo`.`animals`" {
		t.Fatalf("text = %s", cmd.Text)
	}
	if len(cmd.Params) != 0 {
		t.Fatalf("params = %v", cmd.Params)
	}
}

func TestWhereParameterOrderMatchesPlaceholders(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	s := FieldEquals("Name", "cat").And(FieldGreater("Legs", int64(2)))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", s, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT * FROM `zoo`.`animals` WHERE (`Name`=? AND `Legs`>?)"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
	if len(cmd.Params) != 2 {
		t.Fatalf("param count = %d", len(cmd.Params))
	}
	if cmd.Params[0].Value != "cat" || cmd.Params[1].Value != int64(2) {
		t.Fatalf("params out of order: %v", cmd.Params)
	}
}

func TestNamedParameters(t *testing.T) {
	c := NewCompiler(dialect.MSSQL{})
	s := FieldEquals("Name", "cat").Or(FieldEquals("Legs", int64(8)))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", s, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT * FROM [zoo].[dbo].[animals] WHERE ([Name]=@p1 OR [Legs]=@p2)"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
	if cmd.Params[0].Name != "p1" || cmd.Params[1].Name != "p2" {
		t.Fatalf("param names = %v", cmd.Params)
	}
}

func TestPostgresPlaceholdersAreNumbered(t *testing.T) {
	c := NewCompiler(dialect.Postgres{})
	s := FieldGreater("Legs", int64(2)).And(FieldSmaller("Legs", int64(6)))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", s, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := `SELECT * FROM "animals" WHERE ("Legs">$1 AND "Legs"<$2)`
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestNestedExpressionsFlattenSameMode(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	s := FieldEquals("Name", "a").And(FieldEquals("Name", "b")).And(FieldEquals("Name", "c"))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", s, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT * FROM `zoo`.`animals` WHERE (`Name`=? AND `Name`=? AND `Name`=?)"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestAndSkipsNilParts(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	s := And(nil, FieldEquals("Name", "cat"))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", s, None())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// A single surviving part renders without grouping parentheses.
	if cmd.Text != "SELECT * FROM `zoo`.`animals` WHERE `Name`=?" {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestSortDirectivesJoinInOrder(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	opts := SortAscending("Name").Add(SortDescending("Legs"))
	cmd, err := c.Select(testLayout(t), "zoo", "animals", nil, opts)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT * FROM `zoo`.`animals` ORDER BY `Name` ASC,`Legs` DESC"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestLimitOffsetPaging(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	cmd, err := c.Select(testLayout(t), "zoo", "animals", nil, Limit(10).Add(Offset(20)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if cmd.Text != "SELECT * FROM `zoo`.`animals` LIMIT 10 OFFSET 20" {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestSortlessPagingStaysValidPerDialect(t *testing.T) {
	// A limit without a sort must still render runnable SQL everywhere;
	// OFFSET/FETCH dialects need a constant ordering supplied for them.
	layout := testLayout(t)

	cmd, err := NewCompiler(dialect.MSSQL{}).Select(layout, "zoo", "animals", nil, Limit(1))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT * FROM [zoo].[dbo].[animals] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}

	// With an explicit sort the constant ordering must not appear.
	cmd, err = NewCompiler(dialect.MSSQL{}).Select(layout, "zoo", "animals", nil,
		SortAscending("Name").Add(Limit(1)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want = "SELECT * FROM [zoo].[dbo].[animals] ORDER BY [Name] ASC OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestDuplicateLimitRejected(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	_, err := c.Select(testLayout(t), "zoo", "animals", nil, Limit(10).Add(Limit(20)))
	var ioe *InvalidOptionError
	if !errors.As(err, &ioe) {
		t.Fatalf("want InvalidOptionError, got %v", err)
	}
}

func TestNegativeLimitRejected(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	_, err := c.Select(testLayout(t), "zoo", "animals", nil, Limit(-5))
	var ioe *InvalidOptionError
	if !errors.As(err, &ioe) {
		t.Fatalf("want InvalidOptionError, got %v", err)
	}
}

func TestGroupWithSortDependsOnDialect(t *testing.T) {
	opts := Group("Name").Add(SortAscending("Legs"))

	my := NewCompiler(dialect.MySQL{})
	cmd, err := my.Select(testLayout(t), "zoo", "animals", nil, opts)
	if err != nil {
		t.Fatalf("mysql group+sort: %v", err)
	}
	want := "SELECT * FROM `zoo`.`animals` GROUP BY `Name` ORDER BY `Legs` ASC"
	if cmd.Text != want {
		t.Fatalf("mysql text = %s", cmd.Text)
	}

	ms := NewCompiler(dialect.MSSQL{})
	_, err = ms.Select(testLayout(t), "zoo", "animals", nil, opts)
	var ioe *InvalidOptionError
	if !errors.As(err, &ioe) {
		t.Fatalf("mssql should reject group+sort, got %v", err)
	}
}

func TestGroupedSelectFallsBackToGroupColumn(t *testing.T) {
	c := NewCompiler(dialect.MSSQL{})
	cmd, err := c.Select(testLayout(t), "zoo", "animals", nil, Group("Name"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "SELECT [Name] FROM [zoo].[dbo].[animals] GROUP BY [Name]"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestCountAndCountDistinct(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	cmd, err := c.Count(testLayout(t), "zoo", "animals", nil, None())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if cmd.Text != "SELECT COUNT(*) FROM `zoo`.`animals`" {
		t.Fatalf("text = %s", cmd.Text)
	}
	cmd, err = c.Count(testLayout(t), "zoo", "animals", nil, Group("Name"))
	if err != nil {
		t.Fatalf("grouped Count: %v", err)
	}
	if cmd.Text != "SELECT COUNT(DISTINCT `Name`) FROM `zoo`.`animals`" {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestInsertSkipsAutoIncrement(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	born := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	row := fields.NewRow(int64(0), "cat", int64(4), born)
	cmd, err := c.Insert(testLayout(t), "zoo", "animals", row)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	want := "INSERT INTO `zoo`.`animals` (`Name`,`Legs`,`Born`) VALUES (?,?,?)"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
	if len(cmd.Params) != 3 {
		t.Fatalf("param count = %d", len(cmd.Params))
	}
	// Ticks representations travel as int64.
	if _, ok := cmd.Params[2].Value.(int64); !ok {
		t.Fatalf("datetime wire value = %T", cmd.Params[2].Value)
	}
}

func TestUpdateKeysOnID(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	row := fields.NewRow(int64(7), "cat", int64(4), time.Time{})
	cmd, err := c.Update(testLayout(t), "zoo", "animals", row)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := "UPDATE `zoo`.`animals` SET `Name`=?,`Legs`=?,`Born`=? WHERE `ID`=?"
	if cmd.Text != want {
		t.Fatalf("text = %s", cmd.Text)
	}
	if cmd.Params[3].Value != int64(7) {
		t.Fatalf("id param = %v", cmd.Params[3].Value)
	}
	// Zero time collapses to NULL on the wire.
	if cmd.Params[2].Value != nil {
		t.Fatalf("zero time wire value = %v", cmd.Params[2].Value)
	}
}

func TestDeleteWithAndWithoutFilter(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	cmd, err := c.Delete(testLayout(t), "zoo", "animals", nil)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cmd.Text != "DELETE FROM `zoo`.`animals`" {
		t.Fatalf("text = %s", cmd.Text)
	}
	cmd, err = c.Delete(testLayout(t), "zoo", "animals", FieldEquals("Legs", int64(0)))
	if err != nil {
		t.Fatalf("filtered Delete: %v", err)
	}
	if cmd.Text != "DELETE FROM `zoo`.`animals` WHERE `Legs`=?" {
		t.Fatalf("text = %s", cmd.Text)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	if _, err := c.Select(testLayout(t), "zoo", "animals", FieldEquals("Wings", 2), None()); err == nil {
		t.Fatal("unknown filter field must error")
	}
	if _, err := c.Select(testLayout(t), "zoo", "animals", nil, SortAscending("Wings")); err == nil {
		t.Fatal("unknown sort field must error")
	}
}

func TestSelectFieldProjectsOneColumn(t *testing.T) {
	c := NewCompiler(dialect.MySQL{})
	cmd, err := c.SelectField(testLayout(t), "zoo", "animals", "Name", FieldEquals("ID", int64(1)), None())
	if err != nil {
		t.Fatalf("SelectField: %v", err)
	}
	if cmd.Text != "SELECT `Name` FROM `zoo`.`animals` WHERE `ID`=?" {
		t.Fatalf("text = %s", cmd.Text)
	}
}
