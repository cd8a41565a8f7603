package model

import (
	"context"
	"time"
)

// Status is the terminal outcome of one application attempt.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ApplicationRecord is one ledger line. Records are append-only; a job ID
// appears at most once per ledger.
type ApplicationRecord struct {
	JobID             string    `json:"job_id"`
	RunID             string    `json:"run_id"`
	ProfileSnapshotID string    `json:"profile_snapshot_id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	URL               string    `json:"url"`
	Score             float64   `json:"score"`
	Platform          string    `json:"platform"`
	Status            Status    `json:"status"`
	Step              string    `json:"step,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Ledger persists application outcomes.
type Ledger interface {
	// Append stores rec, returning ErrDuplicate if rec.JobID is already recorded.
	Append(ctx context.Context, rec ApplicationRecord) error
	HasRecord(jobID string) (bool, error)
}

// Credential is a username/password pair for a platform login.
type Credential struct {
	Username string
	Password string
}

// CredentialProvider looks up platform credentials. ok is false when there is
// no entry for the platform.
type CredentialProvider interface {
	Get(platform string) (cred Credential, ok bool)
}

// Capability is a bit set of the steps a PlatformAdapter can perform.
type Capability uint8

const (
	CapNavigate Capability = 1 << iota
	CapLogin
	CapFillForm
	CapUploadResume
	CapSubmit
)

// Has reports whether every bit in c2 is set in c.
func (c Capability) Has(c2 Capability) bool {
	return c&c2 == c2
}

// ApplicationForm carries the values a platform session fills in.
type ApplicationForm struct {
	FirstName   string
	LastName    string
	FullName    string
	Email       string
	Phone       string
	CoverLetter string
}

// Resume is the document uploaded during an application.
type Resume struct {
	FileName string
	Content  []byte
}

// PlatformAdapter knows how to apply on one job site. A new session is
// created for every job so no state leaks between applications.
type PlatformAdapter interface {
	Name() string
	Capabilities() Capability
	NewSession(job Job) PlatformSession
}

// PlatformSession performs the mechanical steps of a single application.
// Steps the adapter does not advertise in Capabilities are never called.
type PlatformSession interface {
	Navigate(ctx context.Context) error
	Login(ctx context.Context, cred Credential) error
	FillForm(ctx context.Context, form ApplicationForm) error
	UploadResume(ctx context.Context, resume Resume) error
	Submit(ctx context.Context) error
}
