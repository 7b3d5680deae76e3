package models

import "time"

// SystemSettings holds storefront-wide toggles. There is exactly one row.
type SystemSettings struct {
	MaintenanceMode    bool      `json:"maintenance_mode"`
	MaintenanceMessage string    `json:"maintenance_message"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UpdateSettingsRequest is the request body for changing system settings.
// Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	MaintenanceMode    *bool   `json:"maintenance_mode"`
	MaintenanceMessage *string `json:"maintenance_message"`
}
