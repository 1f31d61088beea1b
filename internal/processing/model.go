package processing

// Priority ranks how urgently a nurse task (or audit finding) must be handled.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// TaskStatus tracks the lifecycle of a nurse task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Emotion is the detected emotional tone of a speaker.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionNeutral   Emotion = "neutral"
	EmotionConcerned Emotion = "concerned"
	EmotionCalm      Emotion = "calm"
)

// TranscriptSegment is one contiguous utterance by one speaker.
// Segments keep the chronological order reported by the model.
type TranscriptSegment struct {
	Speaker      string  `json:"speaker"`       // Doctor, Nurse, Patient, Bystander, or a name
	Timestamp    string  `json:"timestamp"`     // MM:SS
	Content      string  `json:"content"`       // original-language text
	Language     string  `json:"language"`      // display name, e.g. "Tamil"
	LanguageCode string  `json:"language_code"` // short code, e.g. "ta"
	Translation  *string `json:"translation"`   // English translation when content is not English
	Emotion      Emotion `json:"emotion"`
}

type Symptom struct {
	Name     string  `json:"name"`
	Severity *string `json:"severity"` // mild, moderate, severe
	Duration *string `json:"duration"`
	Notes    *string `json:"notes"`
}

type Diagnosis struct {
	Condition  string  `json:"condition"`
	ICDCode    *string `json:"icd_code"`
	Confidence *string `json:"confidence"` // confirmed, suspected, ruled_out
	Notes      *string `json:"notes"`
}

type Medication struct {
	DrugName     string  `json:"drug_name"`
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	Route        string  `json:"route"` // defaults to "oral"
	Duration     *string `json:"duration"`
	Instructions *string `json:"instructions"`
}

type VitalSign struct {
	Type  string  `json:"type"` // BP, Temperature, Pulse, SpO2, ...
	Value string  `json:"value"`
	Time  *string `json:"time"`
	Notes *string `json:"notes"`
}

// PatientInfo holds whatever demographics were mentioned in the recording.
// The aggregate is always present; unmentioned fields stay null.
type PatientInfo struct {
	Name          *string `json:"name"`
	Age           *string `json:"age"`
	Gender        *string `json:"gender"`
	BedNumber     *string `json:"bed_number"`
	AdmissionDate *string `json:"admission_date"`
}

// InsuranceIssue is one potential claim-rejection risk flagged by the audit.
type InsuranceIssue struct {
	Severity        Priority `json:"severity"`
	RuleViolated    string   `json:"rule_violated"`
	MissingEvidence string   `json:"missing_evidence"`
	Suggestion      string   `json:"suggestion"`
}

// NurseHandover is the SBAR summary for the next shift.
type NurseHandover struct {
	SummarySBAR    string   `json:"summary_sbar"`
	CriticalAlerts []string `json:"critical_alerts"`
	PendingActions []string `json:"pending_actions"`
}

// PatientSummary is the patient-facing summary in the patient's language.
type PatientSummary struct {
	TranslatedContent string `json:"translated_content"`
	WhatsAppMessage   string `json:"whatsapp_message"`
}

// MedicalDocumentation aggregates everything extracted from the conversation.
type MedicalDocumentation struct {
	PatientInfo     PatientInfo      `json:"patient_info"`
	ChiefComplaints []string         `json:"chief_complaints"`
	Symptoms        []Symptom        `json:"symptoms"`
	VitalSigns      []VitalSign      `json:"vital_signs"`
	Diagnoses       []Diagnosis      `json:"diagnoses"`
	Medications     []Medication     `json:"medications"`
	Procedures      []string         `json:"procedures"`
	Instructions    []string         `json:"instructions"`
	FollowUp        *string          `json:"follow_up"`
	InsuranceAudit  []InsuranceIssue `json:"insurance_audit"` // empty means no detected risk
	NurseHandover   *NurseHandover   `json:"nurse_handover"`
	PatientSummary  *PatientSummary  `json:"patient_summary"`
	Notes           *string          `json:"notes"`
}

// NurseTask is one actionable item extracted for the nursing staff.
type NurseTask struct {
	TaskID            string      `json:"task_id"` // synthesized when the model omits it
	Description       string      `json:"description"`
	Priority          Priority    `json:"priority"`
	TaskType          string      `json:"task_type"` // medication, vitals, procedure, monitoring, other
	DueTime           *string     `json:"due_time"`
	DueMinutes        *int        `json:"due_minutes"`
	PatientIdentifier *string     `json:"patient_identifier"`
	MedicationDetails *Medication `json:"medication_details"`
	Status            TaskStatus  `json:"status"`
	Notes             *string     `json:"notes"`
}

// ProcessingResult is the complete output for one processed recording.
// It is immutable once constructed.
type ProcessingResult struct {
	Summary            string               `json:"summary"`
	TranscriptSegments []TranscriptSegment  `json:"transcript_segments"`
	Documentation      MedicalDocumentation `json:"documentation"`
	NurseTasks         []NurseTask          `json:"nurse_tasks"`
	ProcessingTime     *float64             `json:"processing_time"` // seconds; nil if not measured
}
