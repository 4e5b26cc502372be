package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// StatusNotFound is reported by the status endpoint for unknown ids.
const StatusNotFound = "not_found"

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	TaskID string `json:"task_id"`
}

// StatusResponse describes one job.
type StatusResponse struct {
	TaskID      string `json:"task_id,omitempty"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Stage       string `json:"stage,omitempty"`
	Output      string `json:"output,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// NotFoundResponse is the status body for an unknown id.
type NotFoundResponse struct {
	Status string `json:"status"`
}

// CancelResponse reports the job state right after a cancel request.
type CancelResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running       bool           `json:"running"`
	Workers       int            `json:"workers"`
	QueueCapacity int            `json:"queue_capacity"`
	Queued        int            `json:"queued"`
	Jobs          map[string]int `json:"jobs"`
}

// HealthResponse aggregates daemon runtime information.
type HealthResponse struct {
	Status       string             `json:"status"`
	PID          int                `json:"pid"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
