package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// AuditAPI covers the operation log endpoints. Admin only.
type AuditAPI struct {
	client *httpclient.Client
}

// AuditFilter narrows an audit log query. Zero values are omitted.
type AuditFilter struct {
	UserID    int64
	Action    string
	StartDate string
	EndDate   string
}

func (f AuditFilter) apply(values url.Values) url.Values {
	if f.UserID > 0 {
		values.Set("user_id", strconv.FormatInt(f.UserID, 10))
	}
	if f.Action != "" {
		values.Set("action", f.Action)
	}
	if f.StartDate != "" {
		values.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		values.Set("end_date", f.EndDate)
	}
	return values
}

// List returns a filtered page of audit entries.
func (a *AuditAPI) List(ctx context.Context, params ListParams, filter AuditFilter) (AuditLogPage, error) {
	var page AuditLogPage
	err := a.client.Get(ctx, withQuery("/api/audit/", filter.apply(params.values())), &page)
	return page, err
}

// ForEquipment returns the audit trail of one asset, newest first.
func (a *AuditAPI) ForEquipment(ctx context.Context, equipmentID int64) ([]AuditLog, error) {
	var logs []AuditLog
	err := a.client.Get(ctx, fmt.Sprintf("/api/audit/equipment/%d", equipmentID), &logs)
	return logs, err
}

// AuditUser identifies an account that has audit entries.
type AuditUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Users returns every account with at least one audit entry.
func (a *AuditAPI) Users(ctx context.Context) ([]AuditUser, error) {
	var users []AuditUser
	err := a.client.Get(ctx, "/api/audit/users", &users)
	return users, err
}
