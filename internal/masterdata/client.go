package masterdata

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/matadmin/matadmin/internal/platform/httpx"
)

// Client fetches reference data from the materials API through the
// authenticated gateway chain.
type Client struct {
	upstream *httpx.Upstream
}

// NewClient constructs a Client for the materials API base URL.
func NewClient(baseURL string, httpc *http.Client) *Client {
	return &Client{upstream: httpx.NewUpstream(baseURL, httpc)}
}

// Cities returns all cities.
func (c *Client) Cities(ctx context.Context) ([]City, error) {
	var cities []City
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/cities", nil, nil, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// CitiesByDepartment returns the cities belonging to a department.
func (c *Client) CitiesByDepartment(ctx context.Context, departmentCode string) ([]City, error) {
	var cities []City
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/cities/by-department/"+url.PathEscape(departmentCode), nil, nil, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// CitiesByName searches cities by name.
func (c *Client) CitiesByName(ctx context.Context, name string) ([]City, error) {
	query := url.Values{"name": []string{name}}
	var cities []City
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/cities/by-name", query, nil, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// Departments returns all departments.
func (c *Client) Departments(ctx context.Context) ([]Department, error) {
	var departments []Department
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/departments", nil, nil, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

// Reference fetches cities and departments concurrently. Form and filter
// pages need both lists, and neither call depends on the other.
func (c *Client) Reference(ctx context.Context) (*Reference, error) {
	ref := &Reference{}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		cities, err := c.Cities(ctx)
		if err != nil {
			return err
		}
		ref.Cities = cities
		return nil
	})
	group.Go(func() error {
		departments, err := c.Departments(ctx)
		if err != nil {
			return err
		}
		ref.Departments = departments
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ref, nil
}
