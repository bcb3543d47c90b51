package api

import (
	"context"
	"fmt"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// DepartmentAPI covers the department endpoints.
type DepartmentAPI struct {
	client *httpclient.Client
}

// List returns all departments.
func (d *DepartmentAPI) List(ctx context.Context) ([]Department, error) {
	var departments []Department
	err := d.client.Get(ctx, "/api/departments/", &departments)
	return departments, err
}

// ListWithCounts returns departments with their equipment counts.
func (d *DepartmentAPI) ListWithCounts(ctx context.Context) ([]Department, error) {
	var departments []Department
	err := d.client.Get(ctx, "/api/departments/with-counts", &departments)
	return departments, err
}

// Get returns one department.
func (d *DepartmentAPI) Get(ctx context.Context, id int64) (Department, error) {
	var department Department
	err := d.client.Get(ctx, fmt.Sprintf("/api/departments/%d", id), &department)
	return department, err
}

// Create registers a new department.
func (d *DepartmentAPI) Create(ctx context.Context, department Department) (Department, error) {
	var created Department
	err := d.client.Post(ctx, "/api/departments/", department, &created)
	return created, err
}

// Update renames a department.
func (d *DepartmentAPI) Update(ctx context.Context, id int64, department Department) (Department, error) {
	var updated Department
	err := d.client.Put(ctx, fmt.Sprintf("/api/departments/%d", id), department, &updated)
	return updated, err
}

// Delete removes a department.
func (d *DepartmentAPI) Delete(ctx context.Context, id int64) error {
	return d.client.Delete(ctx, fmt.Sprintf("/api/departments/%d", id), nil)
}
