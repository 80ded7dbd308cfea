// Package materials implements the material catalogue screens: listing,
// upstream search, local narrowing of fetched lists, and the CRUD forms.
// All data lives in the remote materials API; this package only presents it.
package materials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matadmin/matadmin/internal/masterdata"
)

// MaterialType enumerates the catalogue categories.
type MaterialType string

// Material types accepted by the materials API.
const (
	TypeElectronics MaterialType = "ELECTRONICS"
	TypeFurniture   MaterialType = "FURNITURE"
	TypeMachinery   MaterialType = "MACHINERY"
	TypeRawMaterial MaterialType = "RAW_MATERIAL"
	TypeVehicle     MaterialType = "VEHICLE"
)

// Types lists all material types for form selects.
func Types() []MaterialType {
	return []MaterialType{TypeElectronics, TypeFurniture, TypeMachinery, TypeRawMaterial, TypeVehicle}
}

// MaterialStatus enumerates the lifecycle states.
type MaterialStatus string

// Material statuses accepted by the materials API.
const (
	StatusAvailable   MaterialStatus = "AVAILABLE"
	StatusReserved    MaterialStatus = "RESERVED"
	StatusSold        MaterialStatus = "SOLD"
	StatusMaintenance MaterialStatus = "MAINTENANCE"
	StatusRetired     MaterialStatus = "RETIRED"
)

// Statuses lists all statuses for form selects.
func Statuses() []MaterialStatus {
	return []MaterialStatus{StatusAvailable, StatusReserved, StatusSold, StatusMaintenance, StatusRetired}
}

// DateLayout is the wire format for material dates.
const DateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// MarshalJSON writes the date in wire format, null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON reads the wire format, accepting null and empty strings.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		if string(data) == "null" {
			d.Time = time.Time{}
			return nil
		}
		return err
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("materials: parse date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}

// String renders the wire format, empty when zero.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Material is an inventory item as returned by the materials API.
type Material struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Type         MaterialType    `json:"type"`
	Price        float64         `json:"price"`
	PurchaseDate Date            `json:"purchaseDate"`
	SaleDate     *Date           `json:"saleDate,omitempty"`
	Status       MaterialStatus  `json:"status"`
	City         masterdata.City `json:"city"`
}

// MaterialInput is the create/update payload sent to the materials API.
type MaterialInput struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Type         MaterialType   `json:"type"`
	Price        float64        `json:"price"`
	PurchaseDate string         `json:"purchaseDate"`
	SaleDate     *string        `json:"saleDate,omitempty"`
	Status       MaterialStatus `json:"status"`
	CityCode     string         `json:"cityCode"`
}

// Filters narrows material lists. Zero-valued fields are ignored.
type Filters struct {
	Type           string
	CityCode       string
	DepartmentCode string
	PurchaseDate   string
	Name           string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Type == "" && f.CityCode == "" && f.DepartmentCode == "" && f.PurchaseDate == "" && f.Name == ""
}

// Normalize trims whitespace off every filter field.
func (f Filters) Normalize() Filters {
	return Filters{
		Type:           strings.TrimSpace(f.Type),
		CityCode:       strings.TrimSpace(f.CityCode),
		DepartmentCode: strings.TrimSpace(f.DepartmentCode),
		PurchaseDate:   strings.TrimSpace(f.PurchaseDate),
		Name:           strings.TrimSpace(f.Name),
	}
}
