package table

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver/memdrv"
	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/pool"
	"github.com/elfen20/clone-cave-data-sub003/internal/search"
)

type species int64

const (
	speciesUnknown species = iota
	speciesDog
	speciesCat
)

type animal struct {
	ID     int64
	Name   string
	Kind   species
	Born   time.Time
	Weight float64
	Tagged bool
}

func animalBinding() *fields.Binding[animal] {
	b := fields.NewBinding[animal]("animals")
	b.Int64("ID", fields.FlagID|fields.FlagAutoIncrement, func(a *animal) *int64 { return &a.ID })
	b.String("Name", fields.FlagIndex, 64, func(a *animal) *string { return &a.Name })
	fields.Enum(b, "Kind", 0, func(a *animal) *species { return &a.Kind })
	b.DateTime("Born", 0, fields.KindUTC, fields.DateTimeBigIntTicks, func(a *animal) *time.Time { return &a.Born })
	b.Float64("Weight", 0, func(a *animal) *float64 { return &a.Weight })
	b.Bool("Tagged", 0, func(a *animal) *bool { return &a.Tagged })
	return b
}

func newTestDatabase(t *testing.T, policy dialect.Policy) (*memdrv.Store, *Database) {
	t.Helper()
	store := memdrv.NewStore()
	store.CreateDatabase("zoo")
	p := pool.New(store, true, 0, nil)
	t.Cleanup(p.Close)
	eng := engine.New(p, policy, nil, nil)
	return store, NewDatabase(eng, "zoo", nil, nil)
}

func openAnimals(t *testing.T, policy dialect.Policy) *Typed[animal] {
	t.Helper()
	_, db := newTestDatabase(t, policy)
	b := animalBinding()
	if err := db.CreateTable(context.Background(), b.Layout()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	typed, err := OpenTyped(context.Background(), db, b)
	if err != nil {
		t.Fatalf("OpenTyped: %v", err)
	}
	return typed
}

var bornBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedAnimals inserts n animals with hourly birth times, four cycling names
// and two cycling species.
func seedAnimals(t *testing.T, animals *Typed[animal], n int) {
	t.Helper()
	names := []string{"rex", "milo", "luna", "bella"}
	for i := 0; i < n; i++ {
		a := animal{
			Name:   names[i%len(names)],
			Kind:   species(1 + i%2),
			Born:   bornBase.Add(time.Duration(i) * time.Hour),
			Weight: 1.5 * float64(i%7),
			Tagged: i%3 == 0,
		}
		if err := animals.Insert(context.Background(), &a); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if a.ID != int64(i+1) {
			t.Fatalf("assigned id = %d, want %d", a.ID, i+1)
		}
	}
}

func TestInsertAndGetStruct(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()

	a := animal{Name: "rex", Kind: speciesDog, Born: bornBase, Weight: 12.5, Tagged: true}
	if err := animals.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if a.ID != 1 {
		t.Fatalf("assigned id = %d", a.ID)
	}

	got, err := animals.GetStruct(ctx, search.FieldEquals("ID", a.ID), search.None())
	if err != nil {
		t.Fatalf("GetStruct: %v", err)
	}
	if got.Name != "rex" || got.Kind != speciesDog || !got.Born.Equal(bornBase) ||
		got.Weight != 12.5 || !got.Tagged {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestInsertIDSurvivesDeletes(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 3)

	// Removing the newest rows must not make the counter reuse their IDs.
	if n, err := animals.Delete(ctx, search.FieldGreater("ID", int64(1))); err != nil || n != 2 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	a := animal{Name: "nori", Kind: speciesDog, Born: bornBase}
	if err := animals.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if a.ID != 4 {
		t.Fatalf("assigned id = %d, want 4", a.ID)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	a := animal{ID: 99, Name: "ghost"}
	err := animals.Update(context.Background(), &a)
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("want ErrRowNotFound, got %v", err)
	}
}

func TestReplace(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()

	a := animal{Name: "rex", Kind: speciesDog, Born: bornBase}
	if err := animals.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	a.Weight = 9.5
	if err := animals.Replace(ctx, &a); err != nil {
		t.Fatalf("Replace existing: %v", err)
	}
	got, err := animals.GetStruct(ctx, search.FieldEquals("ID", a.ID), search.None())
	if err != nil {
		t.Fatalf("GetStruct: %v", err)
	}
	if got.Weight != 9.5 {
		t.Fatalf("weight after replace = %v", got.Weight)
	}

	// An unknown ID falls through to insert; the backend assigns a fresh one.
	b := animal{ID: 500, Name: "milo", Kind: speciesCat, Born: bornBase}
	if err := animals.Replace(ctx, &b); err != nil {
		t.Fatalf("Replace new: %v", err)
	}
	if b.ID != 2 {
		t.Fatalf("replace-inserted id = %d", b.ID)
	}
	n, err := animals.Count(ctx, nil, search.None())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d", n)
	}
}

func TestCountExistDeleteClear(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 12)

	n, err := animals.Count(ctx, search.FieldEquals("Name", "rex"), search.None())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("rex count = %d", n)
	}

	ok, err := animals.Exist(ctx, search.FieldEquals("Name", "nobody"))
	if err != nil {
		t.Fatalf("Exist: %v", err)
	}
	if ok {
		t.Fatal("nobody should not exist")
	}

	if _, err := animals.Delete(ctx, nil); err == nil {
		t.Fatal("nil delete expression must be rejected")
	}
	removed, err := animals.Delete(ctx, search.FieldEquals("Name", "rex"))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d", removed)
	}

	removed, err = animals.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 9 {
		t.Fatalf("cleared = %d", removed)
	}
}

func TestGetStructsFilterAndSort(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 48)

	cutoff := bornBase.Add(24 * time.Hour)
	got, err := animals.GetStructs(ctx,
		search.FieldGreaterOrEqual("Born", cutoff),
		search.SortDescending("Born"))
	if err != nil {
		t.Fatalf("GetStructs: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("rows = %d", len(got))
	}
	for i, a := range got {
		want := bornBase.Add(time.Duration(47-i) * time.Hour)
		if !a.Born.Equal(want) {
			t.Fatalf("row %d born = %v, want %v", i, a.Born, want)
		}
	}
}

func TestPaging(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 10)

	got, err := animals.GetStructs(ctx, nil,
		search.SortAscending("ID").Add(search.Limit(3), search.Offset(4)))
	if err != nil {
		t.Fatalf("GetStructs: %v", err)
	}
	if len(got) != 3 || got[0].ID != 5 || got[2].ID != 7 {
		t.Fatalf("page = %+v", got)
	}
}

func TestGroupedCount(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 48)

	n, err := animals.Count(ctx, nil, search.Group("Name"))
	if err != nil {
		t.Fatalf("grouped Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("distinct names = %d", n)
	}
	n, err = animals.Count(ctx, nil, search.Group("Born"))
	if err != nil {
		t.Fatalf("grouped Count: %v", err)
	}
	if n != 48 {
		t.Fatalf("distinct birth times = %d", n)
	}
}

func TestGroupedRowsNative(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 12)

	got, err := animals.GetStructs(ctx, nil, search.Group("Kind"))
	if err != nil {
		t.Fatalf("GetStructs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("groups = %d", len(got))
	}
}

// fallbackPolicy is the MySQL dialect with SELECT *  + GROUP BY disabled, to
// drive the per-key fallback against the in-memory backend.
type fallbackPolicy struct {
	dialect.MySQL
}

func (fallbackPolicy) Capabilities() dialect.Capabilities {
	caps := dialect.MySQL{}.Capabilities()
	caps.GroupBySelectAll = false
	return caps
}

func TestGroupedRowsFallback(t *testing.T) {
	animals := openAnimals(t, fallbackPolicy{})
	ctx := context.Background()
	seedAnimals(t, animals, 12)

	got, err := animals.GetStructs(ctx, nil, search.Group("Kind"))
	if err != nil {
		t.Fatalf("GetStructs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("groups = %d", len(got))
	}
	// Each representative is the highest-ID row of its group.
	for _, a := range got {
		if a.ID != 11 && a.ID != 12 {
			t.Fatalf("representative id = %d", a.ID)
		}
	}

	// The filter stays in force inside each group.
	got, err = animals.GetStructs(ctx, search.FieldSmallerOrEqual("ID", int64(6)), search.Group("Kind"))
	if err != nil {
		t.Fatalf("filtered GetStructs: %v", err)
	}
	for _, a := range got {
		if a.ID != 5 && a.ID != 6 {
			t.Fatalf("filtered representative id = %d", a.ID)
		}
	}
}

func TestGetStructAt(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 10)

	a, err := animals.GetStructAt(ctx, search.FieldEquals("Kind", speciesCat), 1)
	if err != nil {
		t.Fatalf("GetStructAt: %v", err)
	}
	// Cats occupy the even positions: IDs 2, 4, 6, ...
	if a.ID != 4 {
		t.Fatalf("second cat id = %d", a.ID)
	}
}

func TestGetValue(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 4)

	v, err := animals.GetValue(ctx, "Name", search.FieldEquals("ID", int64(2)), search.None())
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != "milo" {
		t.Fatalf("value = %v", v)
	}
	v, err = animals.GetValue(ctx, "Name", search.FieldEquals("ID", int64(99)), search.None())
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != nil {
		t.Fatalf("missing row value = %v", v)
	}
}

func TestGetRowMissing(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	_, err := animals.GetRow(context.Background(), search.FieldEquals("ID", int64(1)), search.None())
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("want ErrRowNotFound, got %v", err)
	}
}

func TestDatabaseTableManagement(t *testing.T) {
	_, db := newTestDatabase(t, dialect.MySQL{})
	ctx := context.Background()
	b := animalBinding()
	if err := db.CreateTable(ctx, b.Layout()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	names, err := db.TableNames(ctx)
	if err != nil {
		t.Fatalf("TableNames: %v", err)
	}
	if len(names) != 1 || names[0] != "animals" {
		t.Fatalf("tables = %v", names)
	}
	ok, err := db.TableExists(ctx, "animals")
	if err != nil || !ok {
		t.Fatalf("TableExists = %v, %v", ok, err)
	}

	if err := db.DropTable(ctx, "animals"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	ok, err = db.TableExists(ctx, "animals")
	if err != nil || ok {
		t.Fatalf("TableExists after drop = %v, %v", ok, err)
	}
}

func TestUntypedTableDiscovery(t *testing.T) {
	_, db := newTestDatabase(t, dialect.MySQL{})
	ctx := context.Background()
	b := animalBinding()
	if err := db.CreateTable(ctx, b.Layout()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	tbl, err := db.Table(ctx, "animals")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if tbl.Layout().FieldCount() != 6 {
		t.Fatalf("discovered fields = %d", tbl.Layout().FieldCount())
	}
	if tbl.Layout().IsTyped() {
		t.Fatal("discovered layouts are untyped")
	}

	row := fields.NewRow(int64(0), "rex", int64(1), int64(0), float64(3), false)
	inserted, err := tbl.Insert(ctx, row)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.ID(tbl.Layout()) != int64(1) {
		t.Fatalf("inserted id = %v", inserted.ID(tbl.Layout()))
	}
}

func TestOpenTypedRejectsSchemaMismatch(t *testing.T) {
	_, db := newTestDatabase(t, dialect.MySQL{})
	ctx := context.Background()
	if err := db.CreateTable(ctx, animalBinding().Layout()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	wrong := fields.NewBinding[animal]("animals")
	wrong.Int64("ID", fields.FlagID|fields.FlagAutoIncrement, func(a *animal) *int64 { return &a.ID })
	wrong.String("Nickname", 0, 64, func(a *animal) *string { return &a.Name })
	_, err := OpenTyped(ctx, db, wrong)
	var sme *engine.SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("want SchemaMismatchError, got %v", err)
	}
}

func TestHourlyDatasetEndToEnd(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()

	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"}
	all := make([]animal, 1000)
	for i := range all {
		all[i] = animal{
			Name: names[i%len(names)],
			Kind: species(1 + i%2),
			Born: epoch.Add(time.Duration(i) * time.Hour),
		}
		if err := animals.Insert(ctx, &all[i]); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	nameGroups, err := animals.Count(ctx, nil, search.Group("Name"))
	if err != nil {
		t.Fatalf("Count(Group Name): %v", err)
	}
	if nameGroups != 10 {
		t.Fatalf("name groups = %d", nameGroups)
	}
	bornGroups, err := animals.Count(ctx, nil, search.Group("Born"))
	if err != nil {
		t.Fatalf("Count(Group Born): %v", err)
	}
	if bornGroups != 1000 {
		t.Fatalf("born groups = %d", bornGroups)
	}

	t1 := epoch.Add(100 * time.Hour)
	t2 := epoch.Add(200 * time.Hour)
	got, err := animals.GetStructs(ctx,
		search.And(search.FieldGreater("Born", t1), search.FieldSmallerOrEqual("Born", t2)),
		search.SortDescending("Born"))
	if err != nil {
		t.Fatalf("GetStructs: %v", err)
	}

	var want []animal
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Born.After(t1) && !all[i].Born.After(t2) {
			want = append(want, all[i])
		}
	}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].Born.Equal(want[i].Born) || got[i].Name != want[i].Name {
			t.Fatalf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGetValuesDistinct(t *testing.T) {
	animals := openAnimals(t, dialect.MySQL{})
	ctx := context.Background()
	seedAnimals(t, animals, 10)

	values, err := animals.GetValues(ctx, "Name", nil, search.None())
	if err != nil {
		t.Fatalf("GetValues: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("distinct names = %v", values)
	}
	seen := map[string]bool{}
	for _, v := range values {
		name, ok := v.(string)
		if !ok {
			t.Fatalf("value %v is %T, want string", v, v)
		}
		seen[name] = true
	}
	for _, want := range []string{"rex", "milo", "luna", "bella"} {
		if !seen[want] {
			t.Fatalf("missing %q in %v", want, values)
		}
	}
}
