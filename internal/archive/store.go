// Package archive writes immutable snapshots of finished appointments to S3
// for audit and reporting.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/carebridge/telehealth-scheduling/internal/booking"
	"github.com/carebridge/telehealth-scheduling/internal/events"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives appointment records to S3. Only terminal appointments
// (completed, cancelled, no-show) are archived; in-flight status changes
// pass through untouched.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

var _ events.Emitter = (*Store)(nil)

// Emit archives the appointment carried by an event once it reaches a
// terminal status.
func (s *Store) Emit(ctx context.Context, eventType string, appointment any) error {
	if !s.Enabled() {
		return nil
	}
	appt, ok := appointment.(*booking.Appointment)
	if !ok {
		return fmt.Errorf("archive: unexpected payload %T for %s", appointment, eventType)
	}
	if !appt.Status.Terminal() {
		return nil
	}
	return s.ArchiveAppointment(ctx, appt)
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	AppointmentID string `json:"appointmentId"`
	S3Key         string `json:"s3Key"`
	DoctorID      string `json:"doctorId"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	ArchivedAt    string `json:"archivedAt"`
}

// ArchiveAppointment writes an appointment snapshot as JSON to S3 and appends
// to the manifest.
func (s *Store) ArchiveAppointment(ctx context.Context, appt *booking.Appointment) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("archive: marshal appointment: %w", err)
	}

	now := s.now().UTC()
	s3Key := fmt.Sprintf("appointments/v1/by-date/%s/%s.json",
		strings.ReplaceAll(appt.Date, "-", "/"), appt.ID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived appointment to S3",
		"appointment_id", appt.ID,
		"s3_key", s3Key,
		"status", appt.Status,
	)

	entry := ManifestEntry{
		AppointmentID: appt.ID,
		S3Key:         s3Key,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		Status:        string(appt.Status),
		ArchivedAt:    now.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// The snapshot itself is already archived.
		s.logger.Warn("failed to append manifest", "error", err, "appointment_id", appt.ID)
	}

	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("appointments/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		if !isNotFoundErr(err) {
			s.logger.Debug("manifest read failed, starting fresh", "key", manifestKey, "error", err)
		}
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}

// isNotFoundErr checks if the error is an S3 NoSuchKey error.
func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
