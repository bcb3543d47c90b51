package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// ReportsAPI covers the statistics and reporting endpoints. Report payloads
// are chart-oriented and vary by server version, so the read endpoints
// return raw JSON for the caller to shape.
type ReportsAPI struct {
	client *httpclient.Client
}

// DateRange bounds a report query. Empty fields are omitted.
type DateRange struct {
	StartDate string
	EndDate   string
}

func (r DateRange) values() url.Values {
	values := url.Values{}
	if r.StartDate != "" {
		values.Set("start_date", r.StartDate)
	}
	if r.EndDate != "" {
		values.Set("end_date", r.EndDate)
	}
	return values
}

// Overview returns the report landing aggregates.
func (r *ReportsAPI) Overview(ctx context.Context) (json.RawMessage, error) {
	return r.client.Request(ctx, http.MethodGet, "/api/reports/overview", nil)
}

// CalibrationStats returns calibration counts over the range.
func (r *ReportsAPI) CalibrationStats(ctx context.Context, rng DateRange) (json.RawMessage, error) {
	return r.client.Request(ctx, http.MethodGet, withQuery("/api/reports/calibration-stats", rng.values()), nil)
}

// EquipmentTrends returns asset count trends over the range.
func (r *ReportsAPI) EquipmentTrends(ctx context.Context, rng DateRange) (json.RawMessage, error) {
	return r.client.Request(ctx, http.MethodGet, withQuery("/api/reports/equipment-trends", rng.values()), nil)
}

// DepartmentComparison returns per-department aggregates over the range.
func (r *ReportsAPI) DepartmentComparison(ctx context.Context, rng DateRange) (json.RawMessage, error) {
	return r.client.Request(ctx, http.MethodGet, withQuery("/api/reports/department-comparison", rng.values()), nil)
}

// CalibrationRecords returns the calibration detail rows, paginated.
func (r *ReportsAPI) CalibrationRecords(ctx context.Context, rng DateRange, page, pageSize int) (json.RawMessage, error) {
	values := rng.values()
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("page_size", strconv.Itoa(pageSize))
	return r.client.Request(ctx, http.MethodGet, withQuery("/api/reports/calibration-records", values), nil)
}

// Export downloads the full report workbook for the range.
func (r *ReportsAPI) Export(ctx context.Context, rng DateRange, format string, dst io.Writer) (string, error) {
	values := rng.values()
	if format == "" {
		format = "excel"
	}
	values.Set("format", format)
	return r.client.Download(ctx, http.MethodGet, withQuery("/api/reports/export", values), nil, dst, nil)
}

// ExportData downloads one report type's rows.
func (r *ReportsAPI) ExportData(ctx context.Context, reportType string, rng DateRange, format string, dst io.Writer) (string, error) {
	values := rng.values()
	values.Set("report_type", reportType)
	if format == "" {
		format = "excel"
	}
	values.Set("format", format)
	return r.client.Download(ctx, http.MethodGet, withQuery("/api/reports/export-data", values), nil, dst, nil)
}

// EquipmentStatsQuery controls the equipment value statistics listing.
type EquipmentStatsQuery struct {
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
	SortBy2    string
	SortOrder2 string
}

// EquipmentStats returns per-asset value statistics with primary and
// optional secondary sort keys.
func (r *ReportsAPI) EquipmentStats(ctx context.Context, query EquipmentStatsQuery) (json.RawMessage, error) {
	values := url.Values{}
	if query.SortBy == "" {
		query.SortBy = "original_value"
	}
	if query.SortOrder == "" {
		query.SortOrder = "desc"
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	values.Set("sort_by", query.SortBy)
	values.Set("sort_order", query.SortOrder)
	values.Set("page", strconv.Itoa(query.Page))
	values.Set("page_size", strconv.Itoa(query.PageSize))
	if query.SortBy2 != "" {
		values.Set("sort_by2", query.SortBy2)
		order := query.SortOrder2
		if order == "" {
			order = "desc"
		}
		values.Set("sort_order2", order)
	}
	return r.client.Request(ctx, http.MethodGet, withQuery("/api/reports/equipment-stats", values), nil)
}
