package materials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/masterdata"
	_ "github.com/matadmin/matadmin/testing"
)

func day(value string) Date {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		panic(err)
	}
	return Date{Time: t}
}

func fixtureList() []Material {
	return []Material{
		{ID: 1, Name: "Office chair", Type: TypeFurniture, PurchaseDate: day("2026-01-10"), Status: StatusAvailable, City: masterdata.City{Code: "NYC", DepartmentCode: "NY"}},
		{ID: 2, Name: "Drill press", Type: TypeMachinery, PurchaseDate: day("2026-02-05"), Status: StatusReserved, City: masterdata.City{Code: "BOS", DepartmentCode: "MA"}},
		{ID: 3, Name: "Delivery van", Type: TypeVehicle, PurchaseDate: day("2026-02-05"), Status: StatusSold, City: masterdata.City{Code: "NYC", DepartmentCode: "NY"}},
		{ID: 4, Name: "Steel coil", Type: TypeRawMaterial, PurchaseDate: day("2026-03-01"), Status: StatusAvailable, City: masterdata.City{Code: "ALB", DepartmentCode: "NY"}},
	}
}

func ids(list []Material) []int64 {
	out := make([]int64, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestFilterLocalNoFiltersReturnsAll(t *testing.T) {
	list := fixtureList()
	require.Equal(t, list, FilterLocal(list, Filters{}))
}

func TestFilterLocalByType(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{Type: "MACHINERY"})
	require.Equal(t, []int64{2}, ids(got))
}

func TestFilterLocalByCity(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{CityCode: "NYC"})
	require.Equal(t, []int64{1, 3}, ids(got))
}

func TestFilterLocalByDepartment(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{DepartmentCode: "NY"})
	require.Equal(t, []int64{1, 3, 4}, ids(got))
}

func TestFilterLocalByNameIsCaseInsensitiveSubstring(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{Name: "dRiLl"})
	require.Equal(t, []int64{2}, ids(got))

	got = FilterLocal(fixtureList(), Filters{Name: "e"})
	require.Equal(t, []int64{1, 2, 3, 4}, ids(got))
}

func TestFilterLocalByPurchaseDateComparesCalendarDay(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{PurchaseDate: "2026-02-05"})
	require.Equal(t, []int64{2, 3}, ids(got))
}

func TestFilterLocalCombinesCriteria(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{DepartmentCode: "NY", Type: "VEHICLE"})
	require.Equal(t, []int64{3}, ids(got))

	got = FilterLocal(fixtureList(), Filters{DepartmentCode: "MA", Type: "VEHICLE"})
	require.Empty(t, got)
}

func TestFilterLocalTrimsWhitespace(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{CityCode: "  NYC  "})
	require.Equal(t, []int64{1, 3}, ids(got))
}

func TestFilterLocalInvalidDateIgnored(t *testing.T) {
	got := FilterLocal(fixtureList(), Filters{PurchaseDate: "not-a-date"})
	require.Len(t, got, 4)
}
