package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
)

func makeTable() *catalog.Table {
	t := catalog.NewTable("users", []catalog.Column{
		{Name: "id", Type: catalog.Int},
		{Name: "dept", Type: catalog.String},
	}, "id", nil)
	t.Data = []catalog.Row{
		{catalog.NewInt(1), catalog.NewString("eng")},
		{catalog.NewInt(2), catalog.NewString("sales")},
		{catalog.NewInt(3), catalog.NewString("eng")},
	}
	return t
}

func TestCreateOrRebuildScansExistingData(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	idx := s.CreateOrRebuild(tbl, "dept", "")

	assert.Equal(t, DefaultName("users", "dept"), idx.Name)
	assert.ElementsMatch(t, []int{0, 2}, idx.Lookup(catalog.NewString("eng")))
	assert.ElementsMatch(t, []int{1}, idx.Lookup(catalog.NewString("sales")))
	assert.Nil(t, idx.Lookup(catalog.NewString("marketing")))
}

func TestCreateOrRebuildPreservesNameOnRebuild(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	first := s.CreateOrRebuild(tbl, "dept", "custom_name")
	require.Equal(t, "custom_name", first.Name)

	tbl.Data = append(tbl.Data, catalog.Row{catalog.NewInt(4), catalog.NewString("marketing")})
	second := s.CreateOrRebuild(tbl, "dept", "")

	assert.Equal(t, "custom_name", second.Name)
	assert.ElementsMatch(t, []int{3}, second.Lookup(catalog.NewString("marketing")))
}

func TestInsertRowAppendsToEveryIndexOnTable(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	s.CreateOrRebuild(tbl, "id", "")
	s.CreateOrRebuild(tbl, "dept", "")

	newRow := catalog.Row{catalog.NewInt(4), catalog.NewString("eng")}
	tbl.Data = append(tbl.Data, newRow)
	s.InsertRow(tbl, newRow, 3)

	assert.Equal(t, []int{3}, s.On("users", "id").Lookup(catalog.NewInt(4)))
	assert.ElementsMatch(t, []int{0, 2, 3}, s.On("users", "dept").Lookup(catalog.NewString("eng")))
}

func TestRebuildAllReindexesAfterCompaction(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	s.CreateOrRebuild(tbl, "dept", "")

	// simulate a delete compacting row 0 away: row ids shift down by one.
	tbl.Data = []catalog.Row{tbl.Data[1], tbl.Data[2]}
	s.RebuildAll(tbl)

	idx := s.On("users", "dept")
	assert.ElementsMatch(t, []int{1}, idx.Lookup(catalog.NewString("eng")))
	assert.ElementsMatch(t, []int{0}, idx.Lookup(catalog.NewString("sales")))
}

func TestDropByNameSearchesEveryTable(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	s.CreateOrRebuild(tbl, "dept", "dept_idx")

	assert.True(t, s.DropByName("dept_idx"))
	assert.Nil(t, s.On("users", "dept"))
	assert.False(t, s.DropByName("dept_idx"))
}

func TestDropTableRemovesEveryIndexOnIt(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	s.CreateOrRebuild(tbl, "id", "")
	s.CreateOrRebuild(tbl, "dept", "")

	s.DropTable("users")
	assert.Nil(t, s.On("users", "id"))
	assert.Nil(t, s.On("users", "dept"))
}

func TestAscendVisitsKeysInOrder(t *testing.T) {
	tbl := makeTable()
	idx := New("id_idx", "users", "id")
	idx.Rebuild(tbl)

	var seen []int64
	idx.Ascend(func(value catalog.Value, rows []int) bool {
		seen = append(seen, value.Int)
		return true
	})
	assert.Equal(t, []int64{1, 2, 3}, seen)
}

func TestExportImportRoundTrip(t *testing.T) {
	tbl := makeTable()
	s := NewStore()
	s.EnsureTable(tbl.Name)
	s.CreateOrRebuild(tbl, "dept", "dept_idx")

	snaps := s.Export(func(table, column string) catalog.Type { return catalog.String })
	require.Len(t, snaps, 1)

	restored := Import(snaps)
	idx := restored.On("users", "dept")
	require.NotNil(t, idx)
	assert.Equal(t, "dept_idx", idx.Name)
	assert.ElementsMatch(t, []int{0, 2}, idx.Lookup(catalog.NewString("eng")))
}
