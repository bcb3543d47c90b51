package api

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// SettingsAPI covers the system settings endpoints.
type SettingsAPI struct {
	client *httpclient.Client
}

// SystemSettings mirrors the server's tunable configuration.
type SystemSettings struct {
	SiteName             string `json:"site_name,omitempty"`
	CalibrationLeadDays  int    `json:"calibration_lead_days,omitempty"`
	PageSize             int    `json:"page_size,omitempty"`
	NotificationsEnabled bool   `json:"notifications_enabled,omitempty"`
}

// Get returns the current settings.
func (s *SettingsAPI) Get(ctx context.Context) (SystemSettings, error) {
	var settings SystemSettings
	err := s.client.Get(ctx, "/api/settings/", &settings)
	return settings, err
}

// Update replaces the settings.
func (s *SettingsAPI) Update(ctx context.Context, settings SystemSettings) (SystemSettings, error) {
	var updated SystemSettings
	err := s.client.Put(ctx, "/api/settings/", settings, &updated)
	return updated, err
}

// Reset restores the server defaults.
func (s *SettingsAPI) Reset(ctx context.Context) (SystemSettings, error) {
	var restored SystemSettings
	err := s.client.Post(ctx, "/api/settings/reset", nil, &restored)
	return restored, err
}
