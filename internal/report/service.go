package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"medscribe/internal/processing"
)

type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

// Service renders a processed recording into a PDF ward report and sends it
// to the configured ward chat. It is entirely optional: when no chat is
// configured, SendWardReport is a no-op.
type Service struct {
	tgClient   TelegramClient
	wardChatID int64
	logger     *zap.Logger
}

func NewService(tg TelegramClient, wardChatID int64, logger *zap.Logger) *Service {
	return &Service{
		tgClient:   tg,
		wardChatID: wardChatID,
		logger:     logger,
	}
}

// Font paths for DejaVuSans, which covers the transliterations used in the
// report. Multiple paths cover Alpine and Debian images.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

func (s *Service) SendWardReport(ctx context.Context, result processing.ProcessingResult) error {
	if s.tgClient == nil || s.wardChatID == 0 {
		return nil
	}

	pdfData, err := s.renderPDF(result)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("ward_report_%s.pdf", time.Now().Format("20060102_150405"))
	if err := s.tgClient.SendDocument(s.wardChatID, pdfData, fileName); err != nil {
		return fmt.Errorf("failed to send ward report: %w", err)
	}

	// Critical alerts also go out as a plain message, so they are visible
	// without opening the PDF.
	if h := result.Documentation.NurseHandover; h != nil && len(h.CriticalAlerts) > 0 {
		msg := "CRITICAL ALERTS:\n- " + strings.Join(h.CriticalAlerts, "\n- ")
		if err := s.tgClient.SendMessage(s.wardChatID, msg); err != nil {
			s.logger.Warn("failed to send critical alerts message", zap.Error(err))
		}
	}

	s.logger.Info("ward report sent", zap.Int64("chat_id", s.wardChatID))
	return nil
}

func (s *Service) renderPDF(result processing.ProcessingResult) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	w := &pdfWriter{pdf: &pdf}

	w.heading(20, "Medical Documentation Report")
	w.line(12, fmt.Sprintf("Generated: %s", time.Now().Format("02.01.2006 15:04")))
	w.line(12, fmt.Sprintf("Summary: %s", result.Summary))
	w.gap()

	doc := result.Documentation

	w.heading(14, "Patient")
	info := doc.PatientInfo
	w.line(11, fmt.Sprintf("Name: %s   Age: %s   Gender: %s", orDash(info.Name), orDash(info.Age), orDash(info.Gender)))
	w.line(11, fmt.Sprintf("Bed: %s   Admitted: %s", orDash(info.BedNumber), orDash(info.AdmissionDate)))
	w.gap()

	if len(doc.ChiefComplaints) > 0 {
		w.heading(14, "Chief Complaints")
		for _, c := range doc.ChiefComplaints {
			w.line(11, "- "+c)
		}
		w.gap()
	}

	if len(doc.Diagnoses) > 0 {
		w.heading(14, "Diagnoses")
		for _, d := range doc.Diagnoses {
			line := "- " + d.Condition
			if d.ICDCode != nil {
				line += " (" + *d.ICDCode + ")"
			}
			w.line(11, line)
		}
		w.gap()
	}

	if len(doc.Medications) > 0 {
		w.heading(14, "Medications")
		for _, m := range doc.Medications {
			w.line(11, fmt.Sprintf("- %s %s, %s, %s", m.DrugName, m.Dosage, m.Frequency, m.Route))
		}
		w.gap()
	}

	if len(doc.VitalSigns) > 0 {
		w.heading(14, "Vital Signs")
		for _, v := range doc.VitalSigns {
			w.line(11, fmt.Sprintf("- %s: %s", v.Type, v.Value))
		}
		w.gap()
	}

	if len(doc.InsuranceAudit) > 0 {
		w.heading(14, "Insurance Audit Findings")
		for _, issue := range doc.InsuranceAudit {
			w.line(11, fmt.Sprintf("- [%s] %s", issue.Severity, issue.RuleViolated))
			w.line(11, "  Missing: "+issue.MissingEvidence)
			w.line(11, "  Suggestion: "+issue.Suggestion)
		}
		w.gap()
	}

	if h := doc.NurseHandover; h != nil {
		w.heading(14, "Shift Handover (SBAR)")
		w.line(11, h.SummarySBAR)
		for _, a := range h.PendingActions {
			w.line(11, "- Pending: "+a)
		}
		w.gap()
	}

	if len(result.NurseTasks) > 0 {
		w.heading(14, "Nurse Tasks")
		for _, t := range result.NurseTasks {
			w.line(11, fmt.Sprintf("- [%s] %s (%s)", t.Priority, t.Description, t.TaskType))
		}
	}

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfWriter wraps gopdf so a failed SetFont call does not have to be checked
// at every line.
type pdfWriter struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *pdfWriter) heading(size float64, text string) {
	if w.err != nil {
		return
	}
	if err := w.pdf.SetFont("DejaVu", "", size); err != nil {
		w.err = err
		return
	}
	w.pdf.Cell(nil, text)
	w.pdf.Br(size + 6)
}

func (w *pdfWriter) line(size float64, text string) {
	if w.err != nil {
		return
	}
	if err := w.pdf.SetFont("DejaVu", "", size); err != nil {
		w.err = err
		return
	}
	lines, _ := w.pdf.SplitText(text, 500)
	for _, l := range lines {
		w.pdf.Cell(nil, l)
		w.pdf.Br(size + 2)
	}
}

func (w *pdfWriter) gap() {
	if w.err == nil {
		w.pdf.Br(10)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
