package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// EquipmentAPI covers the equipment CRUD, search, and batch endpoints.
type EquipmentAPI struct {
	client *httpclient.Client
}

// List returns a page of equipment.
func (e *EquipmentAPI) List(ctx context.Context, params ListParams) (EquipmentPage, error) {
	var page EquipmentPage
	err := e.client.Get(ctx, withQuery("/api/equipment/", params.values()), &page)
	return page, err
}

// Get returns one equipment record.
func (e *EquipmentAPI) Get(ctx context.Context, id int64) (Equipment, error) {
	var equipment Equipment
	err := e.client.Get(ctx, fmt.Sprintf("/api/equipment/%d", id), &equipment)
	return equipment, err
}

// Create registers a new equipment record.
func (e *EquipmentAPI) Create(ctx context.Context, equipment Equipment) (Equipment, error) {
	var created Equipment
	err := e.client.Post(ctx, "/api/equipment/", equipment, &created)
	return created, err
}

// Update replaces an equipment record.
func (e *EquipmentAPI) Update(ctx context.Context, id int64, equipment Equipment) (Equipment, error) {
	var updated Equipment
	err := e.client.Put(ctx, fmt.Sprintf("/api/equipment/%d", id), equipment, &updated)
	return updated, err
}

// Delete removes an equipment record.
func (e *EquipmentAPI) Delete(ctx context.Context, id int64) error {
	return e.client.Delete(ctx, fmt.Sprintf("/api/equipment/%d", id), nil)
}

// Filter returns equipment matching the given field filters.
func (e *EquipmentAPI) Filter(ctx context.Context, filters map[string]any, params ListParams) (EquipmentPage, error) {
	var page EquipmentPage
	err := e.client.Post(ctx, withQuery("/api/equipment/filter", params.values()), filters, &page)
	return page, err
}

// Search runs a free-text search across equipment fields.
func (e *EquipmentAPI) Search(ctx context.Context, query map[string]any, params ListParams) (EquipmentPage, error) {
	var page EquipmentPage
	err := e.client.Post(ctx, withQuery("/api/equipment/search", params.values()), query, &page)
	return page, err
}

// BatchUpdateCalibration applies one calibration result to many assets.
func (e *EquipmentAPI) BatchUpdateCalibration(ctx context.Context, payload map[string]any) error {
	return e.client.Post(ctx, "/api/equipment/batch/update-calibration", payload, nil)
}

// BatchChangeStatus moves many assets to a new status.
func (e *EquipmentAPI) BatchChangeStatus(ctx context.Context, payload map[string]any) error {
	return e.client.Post(ctx, "/api/equipment/batch/change-status", payload, nil)
}

// BatchDelete removes many assets.
func (e *EquipmentAPI) BatchDelete(ctx context.Context, ids []int64) error {
	return e.client.Post(ctx, "/api/equipment/batch/delete", map[string]any{"ids": ids}, nil)
}

// BatchTransfer moves many assets to another department.
func (e *EquipmentAPI) BatchTransfer(ctx context.Context, payload map[string]any) error {
	return e.client.Post(ctx, "/api/equipment/batch/transfer", payload, nil)
}

// ExportSelected downloads the selected assets as a spreadsheet.
func (e *EquipmentAPI) ExportSelected(ctx context.Context, ids []int64, dst io.Writer) (string, error) {
	return e.client.Download(ctx, http.MethodPost, "/api/equipment/batch/export-selected", map[string]any{"ids": ids}, dst, nil)
}

// ExportMonthlyPlan downloads the monthly calibration plan.
func (e *EquipmentAPI) ExportMonthlyPlan(ctx context.Context, dst io.Writer) (string, error) {
	return e.client.Download(ctx, http.MethodGet, "/api/equipment/export/monthly-plan", nil, dst, nil)
}

// ExportFiltered downloads assets matching the filters.
func (e *EquipmentAPI) ExportFiltered(ctx context.Context, filters map[string]any, dst io.Writer) (string, error) {
	return e.client.Download(ctx, http.MethodPost, "/api/equipment/export/filtered", filters, dst, nil)
}
