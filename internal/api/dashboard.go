package api

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// DashboardAPI covers the dashboard summary endpoints.
type DashboardAPI struct {
	client *httpclient.Client
}

// DashboardStats is the aggregate view shown on the landing page.
type DashboardStats struct {
	TotalEquipments    int            `json:"total_equipments"`
	ActiveEquipments   int            `json:"active_equipments"`
	InactiveEquipments int            `json:"inactive_equipments"`
	MonthlyDueCount    int            `json:"monthly_due_count"`
	OverdueCount       int            `json:"overdue_count"`
	ByDepartment       map[string]int `json:"by_department,omitempty"`
	ByCategory         map[string]int `json:"by_category,omitempty"`
}

// Stats returns the dashboard aggregates.
func (d *DashboardAPI) Stats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := d.client.Get(ctx, "/api/dashboard/stats", &stats)
	return stats, err
}

// MonthlyDue returns assets whose calibration falls due in the current month.
func (d *DashboardAPI) MonthlyDue(ctx context.Context) ([]Equipment, error) {
	var equipments []Equipment
	err := d.client.Get(ctx, "/api/dashboard/monthly-due-equipments", &equipments)
	return equipments, err
}
