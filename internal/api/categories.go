package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// CategoryAPI covers the equipment category endpoints, including the
// predefined name lists attached to each category.
type CategoryAPI struct {
	client *httpclient.Client
}

// List returns all categories.
func (c *CategoryAPI) List(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.client.Get(ctx, "/api/categories/", &categories)
	return categories, err
}

// ListWithCounts returns categories with their equipment counts.
func (c *CategoryAPI) ListWithCounts(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.client.Get(ctx, "/api/categories/with-counts", &categories)
	return categories, err
}

// Get returns one category.
func (c *CategoryAPI) Get(ctx context.Context, id int64) (Category, error) {
	var category Category
	err := c.client.Get(ctx, fmt.Sprintf("/api/categories/%d", id), &category)
	return category, err
}

// Create registers a new category.
func (c *CategoryAPI) Create(ctx context.Context, category Category) (Category, error) {
	var created Category
	err := c.client.Post(ctx, "/api/categories/", category, &created)
	return created, err
}

// Update renames a category.
func (c *CategoryAPI) Update(ctx context.Context, id int64, category Category) (Category, error) {
	var updated Category
	err := c.client.Put(ctx, fmt.Sprintf("/api/categories/%d", id), category, &updated)
	return updated, err
}

// Delete removes a category.
func (c *CategoryAPI) Delete(ctx context.Context, id int64) error {
	return c.client.Delete(ctx, fmt.Sprintf("/api/categories/%d", id), nil)
}

// AddPredefinedName appends a name to the category's predefined list.
func (c *CategoryAPI) AddPredefinedName(ctx context.Context, id int64, name string) (Category, error) {
	var updated Category
	err := c.client.Post(ctx, fmt.Sprintf("/api/categories/%d/predefined-names", id), map[string]string{"name": name}, &updated)
	return updated, err
}

// UpdatePredefinedName replaces one name in the category's predefined list.
func (c *CategoryAPI) UpdatePredefinedName(ctx context.Context, id int64, oldName, newName string) (Category, error) {
	var updated Category
	err := c.client.Put(ctx, fmt.Sprintf("/api/categories/%d/predefined-names", id), map[string]string{"old_name": oldName, "new_name": newName}, &updated)
	return updated, err
}

// RemovePredefinedName drops a name from the category's predefined list.
func (c *CategoryAPI) RemovePredefinedName(ctx context.Context, id int64, name string) (Category, error) {
	var updated Category
	query := url.Values{"name": {name}}
	err := c.client.Delete(ctx, withQuery(fmt.Sprintf("/api/categories/%d/predefined-names", id), query), &updated)
	return updated, err
}

// EquipmentUsage reports how many assets use each predefined name.
func (c *CategoryAPI) EquipmentUsage(ctx context.Context, id int64) (map[string]int, error) {
	var usage map[string]int
	err := c.client.Get(ctx, fmt.Sprintf("/api/categories/%d/equipment-usage", id), &usage)
	return usage, err
}
