// Package api exposes the typed endpoint groups of the equipment management
// service. Every group is a thin wrapper over the request engine; none of
// them mutate session state themselves.
package api

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// API bundles the endpoint groups over one request engine.
type API struct {
	Auth         *AuthAPI
	Equipment    *EquipmentAPI
	Departments  *DepartmentAPI
	Categories   *CategoryAPI
	Dashboard    *DashboardAPI
	Attachments  *AttachmentAPI
	ImportExport *ImportExportAPI
	Settings     *SettingsAPI
	Reports      *ReportsAPI
	Users        *UsersAPI
	Audit        *AuditAPI
}

// New constructs the full API surface.
func New(client *httpclient.Client) *API {
	return &API{
		Auth:         &AuthAPI{client: client},
		Equipment:    &EquipmentAPI{client: client},
		Departments:  &DepartmentAPI{client: client},
		Categories:   &CategoryAPI{client: client},
		Dashboard:    &DashboardAPI{client: client},
		Attachments:  &AttachmentAPI{client: client},
		ImportExport: &ImportExportAPI{client: client},
		Settings:     &SettingsAPI{client: client},
		Reports:      &ReportsAPI{client: client},
		Users:        &UsersAPI{client: client},
		Audit:        &AuditAPI{client: client},
	}
}

// ListParams carries the shared pagination and sorting query parameters.
type ListParams struct {
	Skip      int
	Limit     int
	SortField string
	SortOrder string
}

func (p ListParams) values() url.Values {
	values := url.Values{}
	if p.Skip > 0 {
		values.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortField != "" {
		values.Set("sort_field", p.SortField)
	}
	if p.SortOrder != "" {
		values.Set("sort_order", p.SortOrder)
	}
	return values
}

func withQuery(endpoint string, values url.Values) string {
	if len(values) == 0 {
		return endpoint
	}
	return endpoint + "?" + values.Encode()
}

func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.MalformedResponseError{Err: err}
	}
	return nil
}
