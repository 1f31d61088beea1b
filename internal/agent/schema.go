package agent

// Schema is the declarative shape constraint handed to the inference API as
// a generation config. It mirrors the OpenAPI subset the API accepts.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

const (
	typeObject  = "OBJECT"
	typeArray   = "ARRAY"
	typeString  = "STRING"
	typeInteger = "INTEGER"
)

func str() *Schema { return &Schema{Type: typeString} }

func nullableStr() *Schema { return &Schema{Type: typeString, Nullable: true} }

func strEnum(values ...string) *Schema { return &Schema{Type: typeString, Enum: values} }

func arrayOf(items *Schema) *Schema { return &Schema{Type: typeArray, Items: items} }

// ResponseSchema declares the exact shape the model's output must satisfy:
// required vs nullable fields, closed enum sets, and nesting. It is the same
// contract the normalizer expects as its input. Schema-conformant generation
// is a request, not a guarantee, so the normalizer still defends against
// missing fields.
func ResponseSchema() *Schema {
	medicationProps := map[string]*Schema{
		"drug_name":    str(),
		"dosage":       str(),
		"frequency":    str(),
		"route":        nullableStr(),
		"duration":     nullableStr(),
		"instructions": nullableStr(),
	}

	return &Schema{
		Type: typeObject,
		Properties: map[string]*Schema{
			"summary": {
				Type:        typeString,
				Description: "A concise 2-3 sentence summary of the conversation",
			},
			"transcript_segments": {
				Type:        typeArray,
				Description: "Transcribed segments with speaker and timestamp",
				Items: &Schema{
					Type: typeObject,
					Properties: map[string]*Schema{
						"speaker":       str(),
						"timestamp":     str(),
						"content":       str(),
						"language":      str(),
						"language_code": str(),
						"translation":   nullableStr(),
						"emotion":       strEnum("happy", "sad", "angry", "neutral", "concerned", "calm"),
					},
					Required: []string{"speaker", "timestamp", "content", "language", "language_code", "emotion"},
				},
			},
			"documentation": {
				Type:        typeObject,
				Description: "Structured medical documentation",
				Properties: map[string]*Schema{
					"patient_info": {
						Type: typeObject,
						Properties: map[string]*Schema{
							"name":           nullableStr(),
							"age":            nullableStr(),
							"gender":         nullableStr(),
							"bed_number":     nullableStr(),
							"admission_date": nullableStr(),
						},
					},
					"chief_complaints": arrayOf(str()),
					"symptoms": arrayOf(&Schema{
						Type: typeObject,
						Properties: map[string]*Schema{
							"name":     str(),
							"severity": nullableStr(),
							"duration": nullableStr(),
							"notes":    nullableStr(),
						},
						Required: []string{"name"},
					}),
					"vital_signs": arrayOf(&Schema{
						Type: typeObject,
						Properties: map[string]*Schema{
							"type":  str(),
							"value": str(),
							"time":  nullableStr(),
							"notes": nullableStr(),
						},
						Required: []string{"type", "value"},
					}),
					"diagnoses": arrayOf(&Schema{
						Type: typeObject,
						Properties: map[string]*Schema{
							"condition":  str(),
							"icd_code":   nullableStr(),
							"confidence": nullableStr(),
							"notes":      nullableStr(),
						},
						Required: []string{"condition"},
					}),
					"medications": arrayOf(&Schema{
						Type:       typeObject,
						Properties: medicationProps,
						Required:   []string{"drug_name", "dosage", "frequency"},
					}),
					"procedures":   arrayOf(str()),
					"instructions": arrayOf(str()),
					"follow_up":    nullableStr(),
					"notes":        nullableStr(),
					"insurance_audit": {
						Type:        typeArray,
						Description: "Potential insurance claim rejection risks",
						Items: &Schema{
							Type: typeObject,
							Properties: map[string]*Schema{
								"severity":         strEnum("HIGH", "MEDIUM", "LOW"),
								"rule_violated":    str(),
								"missing_evidence": str(),
								"suggestion":       str(),
							},
							Required: []string{"severity", "rule_violated", "missing_evidence", "suggestion"},
						},
					},
					"nurse_handover": {
						Type:        typeObject,
						Description: "Structured SBAR summary for shift handover",
						Nullable:    true,
						Properties: map[string]*Schema{
							"summary_sbar":    str(),
							"critical_alerts": arrayOf(str()),
							"pending_actions": arrayOf(str()),
						},
						Required: []string{"summary_sbar", "critical_alerts", "pending_actions"},
					},
					"patient_summary": {
						Type:        typeObject,
						Description: "Patient-facing summary for WhatsApp",
						Nullable:    true,
						Properties: map[string]*Schema{
							"translated_content": str(),
							"whatsapp_message":   str(),
						},
						Required: []string{"translated_content", "whatsapp_message"},
					},
				},
				Required: []string{
					"patient_info", "chief_complaints", "symptoms", "vital_signs",
					"diagnoses", "medications", "procedures", "instructions",
				},
			},
			"nurse_tasks": {
				Type:        typeArray,
				Description: "Actionable tasks for nurses",
				Items: &Schema{
					Type: typeObject,
					Properties: map[string]*Schema{
						"task_id":     str(),
						"description": str(),
						"priority":    strEnum("HIGH", "MEDIUM", "LOW"),
						"task_type":   str(),
						"due_time":    nullableStr(),
						"due_minutes": {Type: typeInteger, Nullable: true},
						"patient_identifier": nullableStr(),
						"medication_details": {
							Type:     typeObject,
							Nullable: true,
							Properties: map[string]*Schema{
								"drug_name": str(),
								"dosage":    str(),
								"frequency": str(),
								"route":     nullableStr(),
							},
						},
						"status": strEnum("PENDING", "IN_PROGRESS", "COMPLETED"),
						"notes":  nullableStr(),
					},
					Required: []string{"task_id", "description", "priority", "task_type", "status"},
				},
			},
		},
		Required: []string{"summary", "transcript_segments", "documentation", "nurse_tasks"},
	}
}
