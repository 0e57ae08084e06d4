package progress

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const snapshotSchemaURL = "schema://levelup/progress.json"

// ValidationError is returned when an import payload does not match the
// snapshot schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid progress payload: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// snapshotSchema describes the persisted aggregate. Every top-level field is
// optional so that partial imports validate against the same schema.
var snapshotSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"userId":         map[string]any{"type": "string"},
		"profileVersion": map[string]any{"type": "string"},
		"createdAt":      map[string]any{"type": "string"},
		"lastUpdated":    map[string]any{"type": "string"},
		"userProfile": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"currentLevel":     map[string]any{"type": "integer", "minimum": 1},
				"experiencePoints": map[string]any{"type": "integer", "minimum": 0},
				"performanceTier":  map[string]any{"enum": []any{"low", "mid", "high"}},
				"preferences":      map[string]any{"type": "object"},
				"achievements": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"achievementId"},
						"properties": map[string]any{
							"achievementId": map[string]any{"type": "string", "minLength": 1},
							"name":          map[string]any{"type": "string"},
							"category":      map[string]any{"type": "string"},
						},
					},
				},
				"energy": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"totalEnergy":     map[string]any{"type": "number", "minimum": 0},
						"availableEnergy": map[string]any{"type": "number", "minimum": 0},
						"transactions":    map[string]any{"type": "array"},
					},
				},
				"unlockedFeatures": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"purchasedSkills":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		"tutorialProgress": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"enum": []any{"not_started", "in_progress", "completed", "skipped", "abandoned"},
					},
					"totalTimeSpent":       map[string]any{"type": "number", "minimum": 0},
					"completionPercentage": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
					"stepsCompleted":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"stepProgress":         map[string]any{"type": "object"},
					"knowledgeChecks":      map[string]any{"type": "array"},
				},
			},
		},
		"learningMetrics": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"totalTutorialsStarted":   map[string]any{"type": "integer", "minimum": 0},
				"totalTutorialsCompleted": map[string]any{"type": "integer", "minimum": 0},
				"completionRate":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"dropOffPoints":           map[string]any{"type": "array"},
			},
		},
		"featureUsage": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"metrics":          map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
				"modelsUsed":       map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "integer"}},
				"totalSessionTime": map[string]any{"type": "number", "minimum": 0},
			},
		},
		"analyticsData": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sessions": map[string]any{"type": "array"},
				"events":   map[string]any{"type": "array"},
				"abTests":  map[string]any{"type": "array"},
			},
		},
	},
}

// ValidateJSON checks raw against the snapshot schema.
// Returns *ValidationError on failure.
func ValidateJSON(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ValidationError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	schema, err := compileSnapshotSchema()
	if err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// DecodePartial validates raw and decodes it into a Partial.
func DecodePartial(raw []byte) (Partial, error) {
	var p Partial
	if err := ValidateJSON(raw); err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, &ValidationError{Err: err}
	}
	return p, nil
}

func compileSnapshotSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a plain decoded JSON value.
		b, err := json.Marshal(snapshotSchema)
		if err != nil {
			compileErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(snapshotSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(snapshotSchemaURL)
	})
	return compiledSchema, compileErr
}
