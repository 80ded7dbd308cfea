package materials

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matadmin/matadmin/internal/platform/httpx"
)

// Client talks to the materials API through the authenticated gateway
// chain: the bearer token and the refresh-and-retry behavior come from the
// injected http.Client's transport.
type Client struct {
	upstream *httpx.Upstream
}

// NewClient constructs a Client for the materials API base URL.
func NewClient(baseURL string, httpc *http.Client) *Client {
	return &Client{upstream: httpx.NewUpstream(baseURL, httpc)}
}

// List returns all materials.
func (c *Client) List(ctx context.Context) ([]Material, error) {
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns one material by ID.
func (c *Client) Get(ctx context.Context, id int64) (*Material, error) {
	var mat Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/"+strconv.FormatInt(id, 10), nil, nil, &mat); err != nil {
		return nil, err
	}
	return &mat, nil
}

// Search queries the upstream search endpoint with the given filters.
func (c *Client) Search(ctx context.Context, filters Filters) ([]Material, error) {
	query := url.Values{}
	if filters.Type != "" {
		query.Set("type", filters.Type)
	}
	if filters.CityCode != "" {
		query.Set("cityCode", filters.CityCode)
	}
	if filters.DepartmentCode != "" {
		query.Set("departmentCode", filters.DepartmentCode)
	}
	if filters.PurchaseDate != "" {
		query.Set("purchaseDate", filters.PurchaseDate)
	}
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/search", query, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ByType returns materials of one type.
func (c *Client) ByType(ctx context.Context, matType string) ([]Material, error) {
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/by-type/"+url.PathEscape(matType), nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ByCity returns materials located in one city.
func (c *Client) ByCity(ctx context.Context, cityCode string) ([]Material, error) {
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/by-city/"+url.PathEscape(cityCode), nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ByDepartment returns materials located in one department.
func (c *Client) ByDepartment(ctx context.Context, departmentCode string) ([]Material, error) {
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/by-department/"+url.PathEscape(departmentCode), nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ByName searches materials by name.
func (c *Client) ByName(ctx context.Context, name string) ([]Material, error) {
	query := url.Values{"name": []string{name}}
	var list []Material
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/materials/by-name", query, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Create adds a new material.
func (c *Client) Create(ctx context.Context, input MaterialInput) (*Material, error) {
	var mat Material
	if err := c.upstream.DoJSON(ctx, http.MethodPost, "/materials", nil, input, &mat); err != nil {
		return nil, err
	}
	return &mat, nil
}

// Update replaces an existing material.
func (c *Client) Update(ctx context.Context, id int64, input MaterialInput) (*Material, error) {
	var mat Material
	if err := c.upstream.DoJSON(ctx, http.MethodPut, "/materials/"+strconv.FormatInt(id, 10), nil, input, &mat); err != nil {
		return nil, err
	}
	return &mat, nil
}

// Delete removes a material.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.upstream.DoJSON(ctx, http.MethodDelete, "/materials/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
