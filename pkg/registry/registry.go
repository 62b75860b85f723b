// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*JobRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg JobRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindJob returns the registry entry for a task type.
func (r *JobRegistry) FindJob(taskType string) (*Job, bool) {
	for i := range r.Jobs {
		if r.Jobs[i].TaskType == taskType {
			return &r.Jobs[i], true
		}
	}
	return nil, false
}

// ValidateInput checks raw job variables against the task's input schema.
func (r *JobRegistry) ValidateInput(taskType string, variables []byte) error {
	job, ok := r.FindJob(taskType)
	if !ok || job.InputSchema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(job.InputSchema)
	documentLoader := gojsonschema.NewBytesLoader(variables)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("input validation failed: %v", errs)
	}
	return nil
}
