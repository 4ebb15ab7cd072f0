package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver/memdrv"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/pool"
)

func newTestEngine(t *testing.T) (*memdrv.Store, *Engine) {
	t.Helper()
	store := memdrv.NewStore()
	store.CreateDatabase("zoo")
	p := pool.New(store, true, 0, nil)
	t.Cleanup(p.Close)
	e := New(p, dialect.MySQL{}, nil, nil)

	ddl := "CREATE TABLE `zoo`.`pets` (`ID` BIGINT AUTO_INCREMENT NOT NULL PRIMARY KEY,`Name` VARCHAR(64),`Age` BIGINT)"
	if _, err := e.Execute(context.Background(), "zoo", "pets", Command{Text: ddl}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return store, e
}

func insertPet(t *testing.T, e *Engine, name string, age int64) {
	t.Helper()
	cmd := Command{
		Text: "INSERT INTO `zoo`.`pets` (`Name`,`Age`) VALUES (?,?)",
		Params: []driver.Param{
			{Name: "p1", Value: name},
			{Name: "p2", Value: age},
		},
	}
	if _, err := e.Execute(context.Background(), "zoo", "pets", cmd); err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
}

func TestExecuteAndQuery(t *testing.T) {
	_, e := newTestEngine(t)
	insertPet(t, e, "rex", 3)
	insertPet(t, e, "milo", 5)

	rows, layout, err := e.Query(context.Background(), "zoo", "pets", nil,
		Command{Text: "SELECT * FROM `zoo`.`pets` ORDER BY `ID` ASC"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if layout.FieldCount() != 3 || layout.Field(0).Name != "ID" {
		t.Fatalf("derived layout = %v", layout.Fields())
	}
	if !layout.Field(0).Flags.Has(fields.FlagID) || !layout.Field(0).Flags.Has(fields.FlagAutoIncrement) {
		t.Fatalf("ID flags = %v", layout.Field(0).Flags)
	}
	if rows[0].Value(1) != "rex" || rows[0].Value(2) != int64(3) {
		t.Fatalf("first row = %v", rows[0])
	}
	// Auto-increment starts at 1.
	if rows[0].Value(0) != int64(1) || rows[1].Value(0) != int64(2) {
		t.Fatalf("ids = %v, %v", rows[0].Value(0), rows[1].Value(0))
	}
}

func TestExecuteReportsAffectedRows(t *testing.T) {
	_, e := newTestEngine(t)
	insertPet(t, e, "rex", 3)
	insertPet(t, e, "milo", 3)

	n, err := e.Execute(context.Background(), "zoo", "pets", Command{
		Text:   "UPDATE `zoo`.`pets` SET `Age`=? WHERE `Age`=?",
		Params: []driver.Param{{Name: "p1", Value: int64(4)}, {Name: "p2", Value: int64(3)}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 2 {
		t.Fatalf("affected = %d", n)
	}
}

func TestRetryRecoversFromOpenFailures(t *testing.T) {
	store, _ := newTestEngine(t)
	// A fresh pool has no idle connections, so every attempt must open.
	p := pool.New(store, true, 0, nil)
	t.Cleanup(p.Close)
	e := New(p, dialect.MySQL{}, nil, nil)

	store.FailNextOpens(2)
	if _, err := e.Execute(context.Background(), "zoo", "pets",
		Command{Text: "DELETE FROM `zoo`.`pets`"}); err != nil {
		t.Fatalf("Execute should recover within budget: %v", err)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	store, _ := newTestEngine(t)
	p := pool.New(store, true, 0, nil)
	t.Cleanup(p.Close)
	e := New(p, dialect.MySQL{}, nil, nil)
	e.MaxErrorRetries = 2

	store.FailNextOpens(10)
	if _, err := e.Execute(context.Background(), "zoo", "pets",
		Command{Text: "DELETE FROM `zoo`.`pets`"}); err == nil {
		t.Fatal("exhausted budget must fail")
	}
	store.FailNextOpens(0)
}

func TestDeadConnectionFailureIsRetried(t *testing.T) {
	store, e := newTestEngine(t)
	insertPet(t, e, "rex", 3)
	store.FailNextStatements(1, true)

	rows, _, err := e.Query(context.Background(), "zoo", "pets", nil,
		Command{Text: "SELECT * FROM `zoo`.`pets`"})
	if err != nil {
		t.Fatalf("Query should retry on a dead connection: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestLiveConnectionFailureIsNotRetried(t *testing.T) {
	store, e := newTestEngine(t)
	store.FailNextStatements(1, false)

	_, _, err := e.Query(context.Background(), "zoo", "pets", nil,
		Command{Text: "SELECT * FROM `zoo`.`pets`"})
	if err == nil {
		t.Fatal("failure on a live connection must surface")
	}
	// Only one injected failure existed; had the engine retried, the second
	// attempt would have succeeded and masked it.
}

func TestSchemaCheckAcceptsMatchingLayout(t *testing.T) {
	_, e := newTestEngine(t)
	insertPet(t, e, "rex", 3)

	expected := fields.MustLayout("pets", true,
		fields.Field{Name: "ID", DataType: fields.TypeInt64, Flags: fields.FlagID | fields.FlagAutoIncrement},
		fields.Field{Name: "Name", DataType: fields.TypeString, MaximumLength: 64},
		fields.Field{Name: "Age", DataType: fields.TypeInt64},
	)
	rows, layout, err := e.Query(context.Background(), "zoo", "pets", expected,
		Command{Text: "SELECT * FROM `zoo`.`pets`"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if layout != expected {
		t.Fatal("expected layout should govern decoding")
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestSchemaCheckRejectsMismatch(t *testing.T) {
	_, e := newTestEngine(t)

	expected := fields.MustLayout("pets", true,
		fields.Field{Name: "ID", DataType: fields.TypeInt64, Flags: fields.FlagID | fields.FlagAutoIncrement},
		fields.Field{Name: "Nickname", DataType: fields.TypeString, MaximumLength: 64},
		fields.Field{Name: "Age", DataType: fields.TypeInt64},
	)
	_, _, err := e.Query(context.Background(), "zoo", "pets", expected,
		Command{Text: "SELECT * FROM `zoo`.`pets`"})
	var sme *SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("want SchemaMismatchError, got %v", err)
	}

	e.CheckSchema = false
	if _, _, err := e.Query(context.Background(), "zoo", "pets", expected,
		Command{Text: "SELECT * FROM `zoo`.`pets`"}); err != nil {
		t.Fatalf("disabled check should pass: %v", err)
	}
}

func TestQueryValueShapes(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()

	v, err := e.QueryValue(ctx, "zoo", "pets", "", Command{Text: "SELECT COUNT(*) FROM `zoo`.`pets` WHERE (1=0)"})
	if err != nil {
		t.Fatalf("QueryValue: %v", err)
	}
	if v != int64(0) {
		t.Fatalf("count over empty probe = %v", v)
	}

	insertPet(t, e, "rex", 3)
	insertPet(t, e, "milo", 5)

	v, err = e.QueryValue(ctx, "zoo", "pets", "", Command{Text: "SELECT COUNT(*) FROM `zoo`.`pets`"})
	if err != nil {
		t.Fatalf("QueryValue: %v", err)
	}
	if v != int64(2) {
		t.Fatalf("count = %v", v)
	}

	// Multiple rows are a shape error.
	_, err = e.QueryValue(ctx, "zoo", "pets", "Name", Command{Text: "SELECT * FROM `zoo`.`pets`"})
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("want ShapeError, got %v", err)
	}

	// Zero data rows yield nil.
	v, err = e.QueryValue(ctx, "zoo", "pets", "", Command{
		Text:   "SELECT `Name` FROM `zoo`.`pets` WHERE `Age`=?",
		Params: []driver.Param{{Name: "p1", Value: int64(99)}},
	})
	if err != nil {
		t.Fatalf("QueryValue: %v", err)
	}
	if v != nil {
		t.Fatalf("no match should be nil, got %v", v)
	}
}

func TestQuerySchemaDerivesLayout(t *testing.T) {
	_, e := newTestEngine(t)
	layout, err := e.QuerySchema(context.Background(), "zoo", "pets")
	if err != nil {
		t.Fatalf("QuerySchema: %v", err)
	}
	if layout.FieldCount() != 3 {
		t.Fatalf("fields = %d", layout.FieldCount())
	}
	if layout.IDFieldIndex() != 0 {
		t.Fatalf("id index = %d", layout.IDFieldIndex())
	}
	if layout.Field(1).DataType != fields.TypeString || layout.Field(1).MaximumLength != 64 {
		t.Fatalf("Name field = %v", layout.Field(1))
	}
}

func TestDatabaseShapeMapsRepresentations(t *testing.T) {
	l := fields.MustLayout("events", true,
		fields.Field{Name: "ID", DataType: fields.TypeInt64, Flags: fields.FlagID | fields.FlagAutoIncrement | fields.FlagIndex},
		fields.Field{Name: "At", NameAtDatabase: "at_ticks", DataType: fields.TypeDateTime, DateTimeType: fields.DateTimeBigIntTicks},
		fields.Field{Name: "Kind", DataType: fields.TypeEnum},
	)
	shape := DatabaseShape(l, dialect.MySQL{})
	if shape.Field(1).Name != "at_ticks" || shape.Field(1).DataType != fields.TypeInt64 {
		t.Fatalf("datetime shape = %v", shape.Field(1))
	}
	if shape.Field(2).DataType != fields.TypeInt64 {
		t.Fatalf("enum shape = %v", shape.Field(2))
	}
	// Unreflectable flag bits are masked off.
	if shape.Field(0).Flags.Has(fields.FlagIndex) {
		t.Fatal("index flag is not reflectable")
	}
	// The source layout is untouched.
	if l.Field(1).DataType != fields.TypeDateTime {
		t.Fatal("DatabaseShape must not mutate its input")
	}
}

func TestSchemaCheckAcrossFlagCombinations(t *testing.T) {
	expected := fields.MustLayout("specimens", true,
		fields.Field{Name: "ID", DataType: fields.TypeInt64, Flags: fields.FlagID},
		fields.Field{Name: "Ref", DataType: fields.TypeInt64, Flags: fields.FlagIndex},
		fields.Field{Name: "Tag", DataType: fields.TypeInt64, Flags: fields.FlagUnique},
		fields.Field{Name: "Seq", DataType: fields.TypeInt64, Flags: fields.FlagAutoIncrement},
		fields.Field{Name: "Slot", DataType: fields.TypeInt64, Flags: fields.FlagIndex | fields.FlagAutoIncrement},
		fields.Field{Name: "Code", DataType: fields.TypeInt64, Flags: fields.FlagUnique | fields.FlagIndex},
		fields.Field{Name: "Serial", DataType: fields.TypeInt64, Flags: fields.FlagIndex | fields.FlagAutoIncrement | fields.FlagUnique},
		fields.Field{Name: "Kind", DataType: fields.TypeEnum},
		fields.Field{Name: "Label", DataType: fields.TypeString, MaximumLength: 64},
	)

	// What result-set metadata reports for the same table: index bits are
	// invisible, enums surface as their integer storage type.
	cols := []driver.Column{
		{Name: "ID", DataType: fields.TypeInt64, IsKey: true},
		{Name: "Ref", DataType: fields.TypeInt64},
		{Name: "Tag", DataType: fields.TypeInt64, IsUnique: true},
		{Name: "Seq", DataType: fields.TypeInt64, IsAutoIncrement: true},
		{Name: "Slot", DataType: fields.TypeInt64, IsAutoIncrement: true},
		{Name: "Code", DataType: fields.TypeInt64, IsUnique: true},
		{Name: "Serial", DataType: fields.TypeInt64, IsAutoIncrement: true, IsUnique: true},
		{Name: "Kind", DataType: fields.TypeInt64},
		{Name: "Label", DataType: fields.TypeString, Length: 64},
	}
	derived, err := ReadSchema("specimens", cols, dialect.MySQL{})
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}

	if err := fields.CheckLayout(DatabaseShape(expected, dialect.MySQL{}), derived); err != nil {
		t.Fatalf("CheckLayout: %v", err)
	}

	// A reflectable bit going missing must fail the check.
	cols[2].IsUnique = false
	derived, err = ReadSchema("specimens", cols, dialect.MySQL{})
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}
	if err := fields.CheckLayout(DatabaseShape(expected, dialect.MySQL{}), derived); err == nil {
		t.Fatal("dropped unique flag must not pass")
	}
}
