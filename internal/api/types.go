package api

// Department is an organizational unit owning equipment.
type Department struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	// Populated by the with-counts endpoint only.
	EquipmentCount int `json:"equipment_count,omitempty"`
}

// Category is an equipment category.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	// Populated by the with-counts endpoint only.
	EquipmentCount int `json:"equipment_count,omitempty"`
}

// Equipment is one metrology asset. Dates travel as ISO strings.
type Equipment struct {
	ID                   int64       `json:"id,omitempty"`
	DepartmentID         int64       `json:"department_id"`
	CategoryID           int64       `json:"category_id"`
	Name                 string      `json:"name"`
	Model                string      `json:"model"`
	AccuracyLevel        string      `json:"accuracy_level"`
	MeasurementRange     string      `json:"measurement_range,omitempty"`
	CalibrationCycle     string      `json:"calibration_cycle"`
	CalibrationDate      string      `json:"calibration_date"`
	NextCalibrationDate  string      `json:"next_calibration_date,omitempty"`
	CalibrationMethod    string      `json:"calibration_method,omitempty"`
	SerialNumber         string      `json:"serial_number"`
	InstallationLocation string      `json:"installation_location,omitempty"`
	Manufacturer         string      `json:"manufacturer,omitempty"`
	ManufactureDate      string      `json:"manufacture_date,omitempty"`
	Status               string      `json:"status,omitempty"`
	StatusChangeDate     string      `json:"status_change_date,omitempty"`
	Notes                string      `json:"notes,omitempty"`
	CreatedAt            string      `json:"created_at,omitempty"`
	UpdatedAt            string      `json:"updated_at,omitempty"`
	Department           *Department `json:"department,omitempty"`
	Category             *Category   `json:"category,omitempty"`
}

// EquipmentPage is a paginated equipment listing.
type EquipmentPage struct {
	Items []Equipment `json:"items"`
	Total int         `json:"total"`
}

// Attachment is one file attached to an equipment record.
type Attachment struct {
	ID          int64  `json:"id"`
	EquipmentID int64  `json:"equipment_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// AuditLog is one recorded operation.
type AuditLog struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	EquipmentID int64  `json:"equipment_id,omitempty"`
	Action      string `json:"action"`
	Description string `json:"description"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// AuditLogPage is a paginated audit log listing.
type AuditLogPage struct {
	Items []AuditLog `json:"items"`
	Total int        `json:"total"`
}

// User is an account as managed through the users endpoints.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ImportJob is the status of a server-side Excel import.
type ImportJob struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	Filename       string `json:"filename,omitempty"`
	Progress       int    `json:"progress"`
	ProcessedRows  int    `json:"processed_rows"`
	TotalRows      int    `json:"total_rows"`
	ErrorSummary   string `json:"error_summary,omitempty"`
	ErrorReportURL string `json:"error_report_url,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Terminal import job states.
const (
	ImportJobCompleted = "completed"
	ImportJobFailed    = "failed"
	ImportJobCancelled = "cancelled"
)

// Done reports whether the job reached a terminal state.
func (j ImportJob) Done() bool {
	switch j.Status {
	case ImportJobCompleted, ImportJobFailed, ImportJobCancelled:
		return true
	}
	return false
}
