package processing

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Normalize converts the raw JSON document returned by the inference API into
// a fully populated ProcessingResult. The mapping is total: missing, null, or
// unrecognized fields are replaced with documented defaults and a malformed
// individual entity never aborts the rest of the result. The only failure
// mode is input that does not decode as a JSON object at all.
//
// The sole non-deterministic path is task ID synthesis for tasks the model
// returned without one.
func Normalize(raw []byte, elapsedSeconds *float64) (*ProcessingResult, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("model response is not a JSON object: %w", err)
	}

	segments := make([]TranscriptSegment, 0)
	for _, item := range objectList(doc, "transcript_segments") {
		segments = append(segments, normalizeSegment(item))
	}

	tasks := make([]NurseTask, 0)
	for _, item := range objectList(doc, "nurse_tasks") {
		tasks = append(tasks, normalizeTask(item))
	}

	return &ProcessingResult{
		Summary:            stringOr(doc, "summary", ""),
		TranscriptSegments: segments,
		Documentation:      normalizeDocumentation(object(doc, "documentation")),
		NurseTasks:         tasks,
		ProcessingTime:     elapsedSeconds,
	}, nil
}

func normalizeSegment(seg map[string]any) TranscriptSegment {
	return TranscriptSegment{
		Speaker:      stringOr(seg, "speaker", "Unknown"),
		Timestamp:    stringOr(seg, "timestamp", "00:00"),
		Content:      stringOr(seg, "content", ""),
		Language:     stringOr(seg, "language", "Unknown"),
		LanguageCode: stringOr(seg, "language_code", "un"),
		Translation:  stringPtr(seg, "translation"),
		Emotion:      normalizeEmotion(seg["emotion"]),
	}
}

func normalizeDocumentation(doc map[string]any) MedicalDocumentation {
	symptoms := make([]Symptom, 0)
	for _, item := range objectList(doc, "symptoms") {
		symptoms = append(symptoms, Symptom{
			Name:     stringOr(item, "name", ""),
			Severity: stringPtr(item, "severity"),
			Duration: stringPtr(item, "duration"),
			Notes:    stringPtr(item, "notes"),
		})
	}

	vitals := make([]VitalSign, 0)
	for _, item := range objectList(doc, "vital_signs") {
		vitals = append(vitals, VitalSign{
			Type:  stringOr(item, "type", ""),
			Value: stringOr(item, "value", ""),
			Time:  stringPtr(item, "time"),
			Notes: stringPtr(item, "notes"),
		})
	}

	diagnoses := make([]Diagnosis, 0)
	for _, item := range objectList(doc, "diagnoses") {
		diagnoses = append(diagnoses, Diagnosis{
			Condition:  stringOr(item, "condition", ""),
			ICDCode:    stringPtr(item, "icd_code"),
			Confidence: stringPtr(item, "confidence"),
			Notes:      stringPtr(item, "notes"),
		})
	}

	medications := make([]Medication, 0)
	for _, item := range objectList(doc, "medications") {
		medications = append(medications, normalizeMedication(item))
	}

	audit := make([]InsuranceIssue, 0)
	for _, item := range objectList(doc, "insurance_audit") {
		audit = append(audit, InsuranceIssue{
			Severity:        normalizePriority(item["severity"]),
			RuleViolated:    stringOr(item, "rule_violated", ""),
			MissingEvidence: stringOr(item, "missing_evidence", ""),
			Suggestion:      stringOr(item, "suggestion", ""),
		})
	}

	info := object(doc, "patient_info")

	return MedicalDocumentation{
		PatientInfo: PatientInfo{
			Name:          stringPtr(info, "name"),
			Age:           stringPtr(info, "age"),
			Gender:        stringPtr(info, "gender"),
			BedNumber:     stringPtr(info, "bed_number"),
			AdmissionDate: stringPtr(info, "admission_date"),
		},
		ChiefComplaints: stringList(doc, "chief_complaints"),
		Symptoms:        symptoms,
		VitalSigns:      vitals,
		Diagnoses:       diagnoses,
		Medications:     medications,
		Procedures:      stringList(doc, "procedures"),
		Instructions:    stringList(doc, "instructions"),
		FollowUp:        stringPtr(doc, "follow_up"),
		InsuranceAudit:  audit,
		NurseHandover:   normalizeHandover(object(doc, "nurse_handover")),
		PatientSummary:  normalizePatientSummary(object(doc, "patient_summary")),
		Notes:           stringPtr(doc, "notes"),
	}
}

func normalizeMedication(med map[string]any) Medication {
	return Medication{
		DrugName:     stringOr(med, "drug_name", ""),
		Dosage:       stringOr(med, "dosage", ""),
		Frequency:    stringOr(med, "frequency", ""),
		Route:        stringOr(med, "route", "oral"),
		Duration:     stringPtr(med, "duration"),
		Instructions: stringPtr(med, "instructions"),
	}
}

// normalizeHandover returns nil when the handover object is absent or null.
// When present, all three members are populated - never a partial handover.
func normalizeHandover(h map[string]any) *NurseHandover {
	if h == nil {
		return nil
	}
	return &NurseHandover{
		SummarySBAR:    stringOr(h, "summary_sbar", ""),
		CriticalAlerts: stringList(h, "critical_alerts"),
		PendingActions: stringList(h, "pending_actions"),
	}
}

func normalizePatientSummary(s map[string]any) *PatientSummary {
	if s == nil {
		return nil
	}
	return &PatientSummary{
		TranslatedContent: stringOr(s, "translated_content", ""),
		WhatsAppMessage:   stringOr(s, "whatsapp_message", ""),
	}
}

func normalizeTask(task map[string]any) NurseTask {
	var medDetails *Medication
	if med := object(task, "medication_details"); med != nil {
		m := normalizeMedication(med)
		medDetails = &m
	}

	taskID := stringOr(task, "task_id", "")
	if taskID == "" {
		taskID = newTaskID()
	}

	return NurseTask{
		TaskID:            taskID,
		Description:       stringOr(task, "description", ""),
		Priority:          normalizePriority(task["priority"]),
		TaskType:          stringOr(task, "task_type", "other"),
		DueTime:           stringPtr(task, "due_time"),
		DueMinutes:        intPtr(task, "due_minutes"),
		PatientIdentifier: stringPtr(task, "patient_identifier"),
		MedicationDetails: medDetails,
		Status:            normalizeStatus(task["status"]),
		Notes:             stringPtr(task, "notes"),
	}
}

// newTaskID synthesizes a short identifier for tasks the model returned
// without one. Collisions within a batch are not re-checked; the randomness
// of the underlying UUID makes them negligible.
func newTaskID() string {
	return uuid.New().String()[:8]
}

// Enum coercion is a case-sensitive exact match against the closed set;
// anything else falls back to the documented default.

func normalizeEmotion(v any) Emotion {
	switch Emotion(asString(v)) {
	case EmotionHappy, EmotionSad, EmotionAngry, EmotionNeutral, EmotionConcerned, EmotionCalm:
		return Emotion(asString(v))
	default:
		return EmotionNeutral
	}
}

func normalizePriority(v any) Priority {
	switch Priority(asString(v)) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(asString(v))
	default:
		return PriorityMedium
	}
}

func normalizeStatus(v any) TaskStatus {
	switch TaskStatus(asString(v)) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return TaskStatus(asString(v))
	default:
		return StatusPending
	}
}

// --- untyped JSON accessors ---

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// object returns the named child object, or nil when the key is absent, null,
// or not an object.
func object(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

// objectList returns the object elements of the named array. Non-object
// elements are replaced with an empty object so the element normalizer still
// produces a fully defaulted record.
func objectList(m map[string]any, key string) []map[string]any {
	if m == nil {
		return nil
	}
	raw, _ := m[key].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, el := range raw {
		obj, ok := el.(map[string]any)
		if !ok {
			obj = map[string]any{}
		}
		items = append(items, obj)
	}
	return items
}

func stringList(m map[string]any, key string) []string {
	out := make([]string, 0)
	if m == nil {
		return out
	}
	raw, _ := m[key].([]any)
	for _, el := range raw {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOr(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func stringPtr(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}
	if s, ok := m[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func intPtr(m map[string]any, key string) *int {
	if m == nil {
		return nil
	}
	// encoding/json decodes all numbers into float64
	if f, ok := m[key].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}
