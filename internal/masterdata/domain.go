// Package masterdata exposes the cities and departments reference data
// served by the materials API. The data is read-only here; this application
// only consumes it for filters and form selects.
package masterdata

// City is a location a material can be assigned to.
type City struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	DepartmentCode string `json:"departmentCode"`
}

// Department groups cities into administrative regions.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Reference bundles both lookup lists for form rendering.
type Reference struct {
	Cities      []City
	Departments []Department
}
