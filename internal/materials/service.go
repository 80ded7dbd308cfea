package materials

import (
	"strings"
	"time"
)

// FilterLocal narrows an already-fetched list without another upstream
// call, mirroring the behavior of the list screen's quick filters. Date
// filtering compares calendar days, not instants.
func FilterLocal(list []Material, filters Filters) []Material {
	filters = filters.Normalize()
	if filters.IsZero() {
		return list
	}

	var filterDay time.Time
	if filters.PurchaseDate != "" {
		if parsed, err := time.Parse(DateLayout, filters.PurchaseDate); err == nil {
			filterDay = parsed
		}
	}

	out := make([]Material, 0, len(list))
	for _, mat := range list {
		if filters.Type != "" && string(mat.Type) != filters.Type {
			continue
		}
		if filters.CityCode != "" && mat.City.Code != filters.CityCode {
			continue
		}
		if filters.DepartmentCode != "" && mat.City.DepartmentCode != filters.DepartmentCode {
			continue
		}
		if filters.Name != "" && !strings.Contains(strings.ToLower(mat.Name), strings.ToLower(filters.Name)) {
			continue
		}
		if !filterDay.IsZero() && !sameDay(mat.PurchaseDate.Time, filterDay) {
			continue
		}
		out = append(out, mat)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
