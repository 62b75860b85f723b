// pkg/registry/schema.go
package registry

// JobRegistry describes the task types this engine serves, their input and
// output schemas, and their scheduler-level retry policy.
type JobRegistry struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Jobs        []Job  `json:"jobs"`
}

type Job struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	TaskType     string                 `json:"taskType"`
	Periodic     bool                   `json:"periodic"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	MaxAttempts  int                    `json:"maxAttempts"`
}
