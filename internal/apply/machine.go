// Package apply drives job applications through platform sessions and
// records every outcome in the ledger.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/ai"
	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

// State is a step of the application state machine.
type State string

const (
	StateStart          State = "start"
	StateNavigated      State = "navigated"
	StateLoggedIn       State = "logged_in"
	StateFormFilled     State = "form_filled"
	StateResumeUploaded State = "resume_uploaded"
	StateSubmitted      State = "submitted"
	StateFailed         State = "failed"
	StateSkipped        State = "skipped"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateFailed || s == StateSkipped
}

// Step names used in failure reasons.
const (
	stepNavigate = "navigate"
	stepLogin    = "login"
	stepFill     = "fill_form"
	stepUpload   = "upload_resume"
	stepSubmit   = "submit"
)

const (
	reasonExternalRedirect  = "external-redirect"
	reasonMissingCredential = "missing-credential"
)

// Outcome is the terminal result of one Machine run.
type Outcome struct {
	State  State
	Status model.Status
	Step   string // step that ended the run, empty on success
	Reason string
}

// Machine applies to a single job with a single adapter. It is not reusable.
type Machine struct {
	job     model.ScoredJob
	adapter model.PlatformAdapter
	env     *env
	logger  *slog.Logger

	state   State
	history []State
}

// env holds the collaborators shared by every Machine in a run.
type env struct {
	profile     model.Profile
	applicant   Applicant
	resume      *model.Resume
	credentials model.CredentialProvider
	letters     model.CoverLetterGenerator
	policy      retry.Policy
	stepTimeout time.Duration
}

func newMachine(job model.ScoredJob, adapter model.PlatformAdapter, e *env, logger *slog.Logger) *Machine {
	return &Machine{
		job:     job,
		adapter: adapter,
		env:     e,
		logger:  logger.With("job_id", job.Job.RecordID(), "platform", adapter.Name()),
		state:   StateStart,
		history: []State{StateStart},
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns every state the machine has entered, in order.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Run drives the machine to a terminal state.
func (m *Machine) Run(ctx context.Context) Outcome {
	caps := m.adapter.Capabilities()
	session := m.adapter.NewSession(m.job.Job)

	if err := m.step(ctx, stepNavigate, StateNavigated, m.env.policy, session.Navigate); err != nil {
		return m.fail(stepNavigate, err)
	}
	if !caps.Has(model.CapSubmit) {
		return m.skip(stepNavigate, reasonExternalRedirect)
	}

	if caps.Has(model.CapLogin) {
		cred, ok := m.credential()
		if !ok {
			m.transition(StateFailed)
			return Outcome{State: StateFailed, Status: model.StatusFailed, Step: stepLogin, Reason: reasonMissingCredential}
		}
		login := func(ctx context.Context) error { return session.Login(ctx, cred) }
		if err := m.step(ctx, stepLogin, StateLoggedIn, m.env.policy, login); err != nil {
			return m.fail(stepLogin, err)
		}
	}

	if caps.Has(model.CapFillForm) {
		form := m.form(ctx)
		fill := func(ctx context.Context) error { return session.FillForm(ctx, form) }
		if err := m.step(ctx, stepFill, StateFormFilled, m.env.policy, fill); err != nil {
			return m.fail(stepFill, err)
		}
	}

	if caps.Has(model.CapUploadResume) && m.env.resume != nil {
		resume := *m.env.resume
		upload := func(ctx context.Context) error { return session.UploadResume(ctx, resume) }
		if err := m.step(ctx, stepUpload, StateResumeUploaded, m.env.policy, upload); err != nil {
			return m.fail(stepUpload, err)
		}
	}

	// Sessions report any failure after the request was sent as a submission
	// error, which is never retried.
	if err := m.step(ctx, stepSubmit, StateSubmitted, m.env.policy, session.Submit); err != nil {
		return m.fail(stepSubmit, err)
	}
	m.logger.Info("application submitted", "title", m.job.Job.Title, "company", m.job.Job.Company)
	return Outcome{State: StateSubmitted, Status: model.StatusApplied}
}

// step runs fn under the retry policy, each attempt bounded by the step
// timeout, and transitions to next on success.
func (m *Machine) step(ctx context.Context, name string, next State, p retry.Policy, fn func(context.Context) error) error {
	logger := m.logger.With("step", name)
	_, err := retry.Do(ctx, p, logger, func(ctx context.Context, attempt int) (struct{}, error) {
		stepCtx := ctx
		if m.env.stepTimeout > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, m.env.stepTimeout)
			defer cancel()
		}
		err := fn(stepCtx)
		if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			var stepErr *model.StepError
			if !errors.As(err, &stepErr) {
				err = &model.StepError{Kind: model.StepTimeout, Err: fmt.Errorf("%s exceeded %s: %w", name, m.env.stepTimeout, err)}
			}
		}
		if err != nil {
			logger.Debug("step attempt failed", "attempt", attempt, "error", err)
		}
		return struct{}{}, err
	})
	if err != nil {
		return err
	}
	m.transition(next)
	return nil
}

func (m *Machine) transition(next State) {
	m.logger.Debug("state transition", "from", m.state, "to", next)
	m.state = next
	m.history = append(m.history, next)
}

func (m *Machine) fail(step string, err error) Outcome {
	var skip *model.SkipError
	if errors.As(err, &skip) {
		return m.skip(step, skip.Reason)
	}
	m.transition(StateFailed)
	reason := fmt.Sprintf("%s: %s", step, humanReason(err))
	m.logger.Warn("application failed", "reason", reason)
	return Outcome{State: StateFailed, Status: model.StatusFailed, Step: step, Reason: reason}
}

func (m *Machine) skip(step, reason string) Outcome {
	m.transition(StateSkipped)
	m.logger.Info("application skipped", "step", step, "reason", reason)
	return Outcome{State: StateSkipped, Status: model.StatusSkipped, Step: step, Reason: reason}
}

func (m *Machine) credential() (model.Credential, bool) {
	if m.env.credentials == nil {
		return model.Credential{}, false
	}
	return m.env.credentials.Get(m.adapter.Name())
}

// form assembles the values to fill, generating a cover letter first. A
// generator failure falls back to the template letter.
func (m *Machine) form(ctx context.Context) model.ApplicationForm {
	a := m.env.applicant
	first, last := a.FirstName, a.LastName
	if first == "" && last == "" {
		first, last = splitName(m.env.profile.Name)
	}
	full := strings.TrimSpace(first + " " + last)

	letter := ""
	if m.env.letters != nil {
		text, err := m.env.letters.Generate(ctx, m.env.profile, m.job)
		if err != nil {
			m.logger.Warn("cover letter generation failed, using template", "error", err)
			text = ai.FallbackLetter(m.env.profile, m.job)
		}
		letter = text
	}

	return model.ApplicationForm{
		FirstName:   first,
		LastName:    last,
		FullName:    full,
		Email:       a.Email,
		Phone:       a.Phone,
		CoverLetter: letter,
	}
}

func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

// humanReason renders err as a short message for reports.
func humanReason(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingCredential):
		return reasonMissingCredential
	case errors.Is(err, context.Canceled):
		return "run cancelled"
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return fmt.Sprintf("%s (after %d attempts)", humanReason(exhausted.Err), exhausted.Attempts)
	}

	var stepErr *model.StepError
	if errors.As(err, &stepErr) {
		return clip(stepErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return clip(err.Error())
}

func clip(s string) string {
	const limit = 200
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
