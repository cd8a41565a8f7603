package platform

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/amishk599/jobpilot/internal/model"
)

const (
	fillAndSubmit = model.CapNavigate | model.CapFillForm | model.CapUploadResume | model.CapSubmit
	withLogin     = fillAndSubmit | model.CapLogin
)

var defaultErrorSelector = ".error, .errors, .field-error, .alert-danger, [role=alert]"

// DefaultSpecs returns the form specs for every supported platform.
func DefaultSpecs() []FormSpec {
	return []FormSpec{
		{
			Name:         Greenhouse,
			Capabilities: fillAndSubmit,
			Form:         "form#application_form, form#application-form, form[action*='applications']",
			Fields: FieldNames{
				FirstName:   []string{"job_application[first_name]", "first_name"},
				LastName:    []string{"job_application[last_name]", "last_name"},
				Email:       []string{"job_application[email]", "email"},
				Phone:       []string{"job_application[phone]", "phone"},
				CoverLetter: []string{"job_application[cover_letter_text]", "cover_letter_text"},
				Resume:      []string{"job_application[resume]", "resume"},
			},
			ErrorSelector: defaultErrorSelector,
			SuccessText:   []string{"thank you", "application received", "application has been submitted"},
		},
		{
			Name:         Lever,
			Capabilities: fillAndSubmit,
			ApplyLink:    "a.postings-btn, a[href$='/apply']",
			Form:         "form#application-form, form[action$='/apply']",
			Fields: FieldNames{
				FullName:    []string{"name"},
				Email:       []string{"email"},
				Phone:       []string{"phone"},
				CoverLetter: []string{"comments"},
				Resume:      []string{"resume"},
			},
			ErrorSelector: defaultErrorSelector,
			SuccessText:   []string{"application submitted", "thanks for applying", "thank you"},
		},
		{
			Name:         Workday,
			Capabilities: fillAndSubmit,
			ApplyLink:    "a[data-automation-id='jobPostingApplyButton'], a[href*='/apply']",
			Form:         "form[data-automation-id='applyForm'], form:has(input[type=email])",
			Fields: FieldNames{
				FirstName: []string{"legalNameSection_firstName"},
				LastName:  []string{"legalNameSection_lastName"},
				Email:     []string{"email"},
				Phone:     []string{"phone-number", "phoneNumber"},
				Resume:    []string{"file-upload-input-ref", "resume"},
			},
			ErrorSelector: "[data-automation-id='errorMessage'], " + defaultErrorSelector,
		},
		{
			Name:         LinkedIn,
			Capabilities: withLogin,
			ApplyLink:    "a.jobs-apply-button, a[data-control-name*='apply']",
			Form:         "form.jobs-easy-apply-form, form[action*='easy-apply'], form:has(input[type=file])",
			Fields: FieldNames{
				Phone:       []string{"phoneNumber"},
				CoverLetter: []string{"coverLetter"},
			},
			Login: &LoginSpec{
				Path:     "/login",
				Form:     "form.login__form, form[action*='login'], form:has(input[type=password])",
				Username: []string{"session_key", "username", "email"},
				Password: []string{"session_password", "password"},
			},
			ErrorSelector: ".artdeco-inline-feedback--error, " + defaultErrorSelector,
		},
		{
			Name:         Naukri,
			Capabilities: withLogin,
			ApplyLink:    "a#apply-button, a.apply-button, a[href*='apply']",
			Form:         "form#apply-form, form[action*='apply'], form:has(input[type=file])",
			Login: &LoginSpec{
				Path:     "/nlogin/login",
				Form:     "form#loginForm, form[action*='login'], form:has(input[type=password])",
				Username: []string{"usernameField", "username", "email"},
				Password: []string{"passwordField", "password"},
			},
			ErrorSelector: defaultErrorSelector,
		},
		{
			Name:          Indeed,
			Capabilities:  fillAndSubmit,
			ApplyLink:     "a#applyButtonLinkContainer, #applyButtonLinkContainer a, a[href*='apply']",
			Form:          "form#ia-container-form, form[action*='apply'], form:has(input[type=file])",
			ErrorSelector: defaultErrorSelector,
			StayOnSite:    true,
		},
		{
			// Aggregators only link out to the employer, so there is nothing to fill.
			Name:         Aggregator,
			Capabilities: model.CapNavigate,
		},
		{
			Name:          Generic,
			Capabilities:  fillAndSubmit,
			ApplyLink:     "a[href*='apply']",
			Form:          "form:has(input[type=file]), form:has(input[type=email]), form:has(textarea)",
			ErrorSelector: defaultErrorSelector,
		},
	}
}

// Registry dispatches postings to the adapter for their platform.
type Registry struct {
	adapters map[string]model.PlatformAdapter
}

// NewRegistry creates a registry holding adapters, keyed by Name.
func NewRegistry(adapters ...model.PlatformAdapter) *Registry {
	r := &Registry{adapters: make(map[string]model.PlatformAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// NewDefaultRegistry builds a form adapter for every DefaultSpecs entry.
func NewDefaultRegistry(client *http.Client, logger *slog.Logger) *Registry {
	r := NewRegistry()
	for _, spec := range DefaultSpecs() {
		r.Register(NewFormAdapter(spec, client, logger))
	}
	return r
}

// Register adds a, replacing any adapter with the same name.
func (r *Registry) Register(a model.PlatformAdapter) {
	r.adapters[a.Name()] = a
}

// For returns the adapter for the posting URL, or the generic adapter when
// the detected platform has none. It returns nil if neither is registered.
func (r *Registry) For(rawURL string) model.PlatformAdapter {
	if a, ok := r.adapters[Detect(rawURL)]; ok {
		return a
	}
	return r.adapters[Generic]
}

// Adapters returns the registered adapters sorted by name.
func (r *Registry) Adapters() []model.PlatformAdapter {
	out := make([]model.PlatformAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DryRun wraps every registered adapter so sessions stop before submitting.
func (r *Registry) DryRun() {
	for name, a := range r.adapters {
		r.adapters[name] = dryRunAdapter{a}
	}
}

type dryRunAdapter struct {
	model.PlatformAdapter
}

func (d dryRunAdapter) NewSession(job model.Job) model.PlatformSession {
	return dryRunSession{d.PlatformAdapter.NewSession(job)}
}

type dryRunSession struct {
	model.PlatformSession
}

func (dryRunSession) Submit(context.Context) error {
	return &model.SkipError{Reason: "dry-run"}
}
