package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

const (
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes = 4 << 20
)

// FormSpec describes where a site keeps its application form and what the
// form's fields are called.
type FormSpec struct {
	Name         string
	Capabilities model.Capability

	// ApplyLink selects the link from the posting page to the form page. It is
	// only followed when Form matches nothing on the posting page.
	ApplyLink string
	Form      string
	Fields    FieldNames
	Login     *LoginSpec

	// ErrorSelector matches validation messages on the page returned by a submit.
	ErrorSelector string
	// SuccessText lists lower-case phrases, one of which must appear on the
	// page returned by a submit. Empty accepts any 2xx response.
	SuccessText []string
	// StayOnSite skips postings whose apply link leaves the platform.
	StayOnSite bool
}

// FieldNames lists candidate input names for each value, most specific first.
type FieldNames struct {
	FirstName   []string
	LastName    []string
	FullName    []string
	Email       []string
	Phone       []string
	CoverLetter []string
	Resume      []string
}

// LoginSpec describes a site's sign-in form.
type LoginSpec struct {
	Path     string // resolved against the posting URL
	Form     string
	Username []string
	Password []string
}

// commonFields are tried after a spec's own names.
var commonFields = FieldNames{
	FirstName:   []string{"first_name", "firstname", "firstName", "fname"},
	LastName:    []string{"last_name", "lastname", "lastName", "lname"},
	FullName:    []string{"name", "full_name", "fullname", "fullName"},
	Email:       []string{"email", "email_address", "emailAddress"},
	Phone:       []string{"phone", "phone_number", "phoneNumber", "mobile"},
	CoverLetter: []string{"cover_letter", "cover_letter_text", "coverLetter", "comments", "message"},
	Resume:      []string{"resume", "cv", "file"},
}

// FormAdapter applies through a site's HTML forms. Every session gets its own
// cookie jar.
type FormAdapter struct {
	spec   FormSpec
	client *http.Client
	logger *slog.Logger
}

// NewFormAdapter creates an adapter for spec. client supplies the transport
// and timeout; its cookie jar is never shared between sessions.
func NewFormAdapter(spec FormSpec, client *http.Client, logger *slog.Logger) *FormAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &FormAdapter{spec: spec, client: client, logger: logger.With("platform", spec.Name)}
}

func (a *FormAdapter) Name() string                   { return a.spec.Name }
func (a *FormAdapter) Capabilities() model.Capability { return a.spec.Capabilities }

// NewSession starts a fresh session for job.
func (a *FormAdapter) NewSession(job model.Job) model.PlatformSession {
	// cookiejar.New only fails on a broken public suffix list, and we pass none.
	jar, _ := cookiejar.New(nil)
	return &formSession{
		spec:   &a.spec,
		client: &http.Client{Transport: a.client.Transport, Timeout: a.client.Timeout, Jar: jar},
		logger: a.logger.With("job_id", job.ID),
		job:    job,
	}
}

type formSession struct {
	spec   *FormSpec
	client *http.Client
	logger *slog.Logger
	job    model.Job

	page      *goquery.Document
	pageURL   *url.URL
	form      *htmlForm
	submitted bool
}

func (s *formSession) Navigate(ctx context.Context) error {
	if strings.TrimSpace(s.job.URL) == "" {
		return model.NewStepError(model.StepNavigation, "posting has no URL")
	}
	doc, u, err := s.get(ctx, s.job.URL)
	if err != nil {
		return stepErr(model.StepNavigation, err)
	}
	s.setPage(doc, u)
	s.logger.Debug("opened posting", "url", u.String())
	return nil
}

func (s *formSession) Login(ctx context.Context, cred model.Credential) error {
	spec := s.spec.Login
	if spec == nil {
		return nil
	}
	base, err := s.base()
	if err != nil {
		return err
	}
	loginURL, err := base.Parse(spec.Path)
	if err != nil {
		return model.NewStepError(model.StepNavigation, "login path %q: %v", spec.Path, err)
	}

	doc, u, err := s.get(ctx, loginURL.String())
	if err != nil {
		return stepErr(model.StepNavigation, err)
	}
	sel := doc.Find(spec.Form).First()
	if sel.Length() == 0 {
		return model.NewStepError(model.StepElementNotFound, "login form not found on %s", u)
	}
	form := parseForm(sel, u)
	if !form.set(spec.Username, cred.Username) {
		return model.NewStepError(model.StepElementNotFound, "username field not found in login form")
	}
	if !form.set(spec.Password, cred.Password) {
		return model.NewStepError(model.StepElementNotFound, "password field not found in login form")
	}

	req, err := form.request(ctx)
	if err != nil {
		return stepErr(model.StepNavigation, err)
	}
	doc, u, err = s.do(req)
	if err != nil {
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return &model.StepError{Kind: model.StepAuth, Err: err}
		}
		return stepErr(model.StepNavigation, err)
	}
	if doc.Find(spec.Form).Find("input[type=password]").Length() > 0 {
		return model.NewStepError(model.StepAuth, "credentials rejected")
	}
	s.logger.Debug("signed in", "url", u.String())

	// The posting may render an apply form only for signed-in users.
	doc, u, err = s.get(ctx, s.job.URL)
	if err != nil {
		return stepErr(model.StepNavigation, err)
	}
	s.setPage(doc, u)
	return nil
}

func (s *formSession) FillForm(ctx context.Context, f model.ApplicationForm) error {
	if err := s.locateForm(ctx); err != nil {
		return err
	}
	names := s.spec.Fields
	filled := 0
	for _, fv := range []struct {
		own, common []string
		value       string
	}{
		{names.FirstName, commonFields.FirstName, f.FirstName},
		{names.LastName, commonFields.LastName, f.LastName},
		{names.FullName, commonFields.FullName, f.FullName},
		{names.Email, commonFields.Email, f.Email},
		{names.Phone, commonFields.Phone, f.Phone},
		{names.CoverLetter, commonFields.CoverLetter, f.CoverLetter},
	} {
		if fv.value == "" {
			continue
		}
		if s.form.set(fv.own, fv.value) || s.form.set(fv.common, fv.value) {
			filled++
		}
	}
	if filled == 0 {
		return model.NewStepError(model.StepElementNotFound, "no known fields in application form")
	}
	s.logger.Debug("filled application form", "fields", filled)
	return nil
}

func (s *formSession) UploadResume(ctx context.Context, r model.Resume) error {
	if err := s.locateForm(ctx); err != nil {
		return err
	}
	field := s.form.fileField(s.spec.Fields.Resume)
	if field == "" {
		field = s.form.fileField(commonFields.Resume)
	}
	if field == "" && len(s.form.files) > 0 {
		field = s.form.files[0]
	}
	if field == "" {
		return model.NewStepError(model.StepElementNotFound, "no file input for resume")
	}
	s.form.upload = &upload{field: field, resume: r}
	return nil
}

func (s *formSession) Submit(ctx context.Context) error {
	if s.submitted {
		return model.NewStepError(model.StepSubmission, "application already submitted")
	}
	if err := s.locateForm(ctx); err != nil {
		return err
	}
	req, err := s.form.request(ctx)
	if err != nil {
		return model.NewStepError(model.StepElementNotFound, "build submission: %v", err)
	}

	s.submitted = true
	doc, _, err := s.do(req)
	if err != nil {
		return &model.StepError{Kind: model.StepSubmission, Err: err}
	}

	if s.spec.ErrorSelector != "" {
		if msg := strings.TrimSpace(doc.Find(s.spec.ErrorSelector).First().Text()); msg != "" {
			return model.NewStepError(model.StepSubmission, "form rejected: %s", clip(msg, 120))
		}
	}
	if len(s.spec.SuccessText) > 0 {
		body := strings.ToLower(doc.Text())
		for _, phrase := range s.spec.SuccessText {
			if strings.Contains(body, phrase) {
				return nil
			}
		}
		return model.NewStepError(model.StepSubmission, "no confirmation after submit")
	}
	return nil
}

// locateForm finds the application form on the current page, following the
// spec's apply link once if the posting page has no form.
func (s *formSession) locateForm(ctx context.Context) error {
	if s.form != nil {
		return nil
	}
	if s.page == nil {
		return model.NewStepError(model.StepNavigation, "no page loaded")
	}
	if sel := s.page.Find(s.spec.Form).First(); sel.Length() > 0 {
		s.form = parseForm(sel, s.pageURL)
		return nil
	}

	if s.spec.ApplyLink != "" {
		if href, ok := s.page.Find(s.spec.ApplyLink).First().Attr("href"); ok {
			target, err := s.pageURL.Parse(strings.TrimSpace(href))
			if err != nil {
				return model.NewStepError(model.StepElementNotFound, "apply link %q: %v", href, err)
			}
			if s.spec.StayOnSite && s.leavesSite(target) {
				return &model.SkipError{Reason: "external-redirect"}
			}
			doc, u, err := s.get(ctx, target.String())
			if err != nil {
				return stepErr(model.StepNavigation, err)
			}
			s.setPage(doc, u)
			if sel := doc.Find(s.spec.Form).First(); sel.Length() > 0 {
				s.form = parseForm(sel, u)
				return nil
			}
		}
	}
	return model.NewStepError(model.StepElementNotFound, "application form not found on %s", s.pageURL)
}

func (s *formSession) leavesSite(target *url.URL) bool {
	if strings.EqualFold(target.Hostname(), s.pageURL.Hostname()) {
		return false
	}
	return Detect(target.String()) != s.spec.Name
}

func (s *formSession) base() (*url.URL, error) {
	if s.pageURL != nil {
		return s.pageURL, nil
	}
	u, err := url.Parse(s.job.URL)
	if err != nil {
		return nil, model.NewStepError(model.StepNavigation, "posting URL %q: %v", s.job.URL, err)
	}
	return u, nil
}

func (s *formSession) setPage(doc *goquery.Document, u *url.URL) {
	s.page = doc
	s.pageURL = u
	s.form = nil
}

func (s *formSession) get(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	return s.do(req)
}

// do sends req and parses the response page. Status codes of 400 and above
// are returned as *model.HTTPError.
func (s *formSession) do(req *http.Request) (*goquery.Document, *url.URL, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s %s: %s", req.Method, req.URL.Redacted(), strings.TrimSpace(string(snippet))),
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing page: %w", err)
	}
	return doc, resp.Request.URL, nil
}

// stepErr classifies a transport error: deadlines become StepTimeout,
// anything else the given kind.
func stepErr(kind model.StepErrorKind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.StepError{Kind: model.StepTimeout, Err: err}
	}
	return &model.StepError{Kind: kind, Err: err}
}

// htmlForm is the submittable state of an HTML form.
type htmlForm struct {
	action *url.URL
	method string
	values url.Values
	names  map[string]bool
	files  []string
	upload *upload
}

type upload struct {
	field  string
	resume model.Resume
}

func parseForm(sel *goquery.Selection, base *url.URL) *htmlForm {
	f := &htmlForm{
		action: base,
		method: http.MethodPost,
		values: url.Values{},
		names:  make(map[string]bool),
	}
	if action, ok := sel.Attr("action"); ok && strings.TrimSpace(action) != "" {
		if u, err := base.Parse(strings.TrimSpace(action)); err == nil {
			f.action = u
		}
	}
	if strings.EqualFold(sel.AttrOr("method", ""), http.MethodGet) {
		f.method = http.MethodGet
	}

	sel.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		f.names[name] = true
		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "file":
			f.files = append(f.files, name)
		case "submit", "button", "image", "reset":
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); checked {
				f.values.Add(name, in.AttrOr("value", "on"))
			}
		default:
			f.values.Add(name, in.AttrOr("value", ""))
		}
	})
	sel.Find("textarea[name]").Each(func(_ int, ta *goquery.Selection) {
		name := ta.AttrOr("name", "")
		f.names[name] = true
		f.values.Add(name, ta.Text())
	})
	sel.Find("select[name]").Each(func(_ int, sl *goquery.Selection) {
		name := sl.AttrOr("name", "")
		f.names[name] = true
		opt := sl.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = sl.Find("option").First()
		}
		if opt.Length() > 0 {
			f.values.Add(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
		}
	})
	return f
}

// set stores value in the first candidate field the form has.
func (f *htmlForm) set(candidates []string, value string) bool {
	for _, name := range candidates {
		if f.names[name] {
			f.values.Set(name, value)
			return true
		}
	}
	return false
}

func (f *htmlForm) fileField(candidates []string) string {
	for _, name := range candidates {
		for _, file := range f.files {
			if file == name {
				return name
			}
		}
	}
	return ""
}

func (f *htmlForm) request(ctx context.Context) (*http.Request, error) {
	if f.method == http.MethodGet {
		u := *f.action
		u.RawQuery = f.values.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}

	if f.upload == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.action.String(), strings.NewReader(f.values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, vals := range f.values {
		for _, v := range vals {
			if err := w.WriteField(name, v); err != nil {
				return nil, err
			}
		}
	}
	part, err := w.CreateFormFile(f.upload.field, f.upload.resume.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(f.upload.resume.Content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.action.String(), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
