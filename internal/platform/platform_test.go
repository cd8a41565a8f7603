package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func specFor(t *testing.T, name string) FormSpec {
	t.Helper()
	for _, s := range DefaultSpecs() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no spec named %q", name)
	return FormSpec{}
}

func stepKind(t *testing.T, err error) model.StepErrorKind {
	t.Helper()
	var stepErr *model.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *model.StepError, got %T: %v", err, err)
	}
	return stepErr.Kind
}

var applicant = model.ApplicationForm{
	FirstName:   "Asha",
	LastName:    "Rao",
	FullName:    "Asha Rao",
	Email:       "asha@example.com",
	Phone:       "+91 98450 00000",
	CoverLetter: "Dear team, ...",
}

func TestDetect(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.linkedin.com/jobs/view/123", LinkedIn},
		{"https://in.linkedin.com/jobs/view/123", LinkedIn},
		{"https://www.naukri.com/job-listings-backend-123", Naukri},
		{"https://acme.wd5.myworkdayjobs.com/en-US/careers/job/123", Workday},
		{"https://acme.workday.com/jobs/1", Workday},
		{"https://boards.greenhouse.io/acme/jobs/123", Greenhouse},
		{"https://job-boards.greenhouse.io/acme/jobs/123", Greenhouse},
		{"https://jobs.lever.co/acme/abc-123", Lever},
		{"https://in.indeed.com/viewjob?jk=abc", Indeed},
		{"https://www.simplyhired.co.in/job/abc", Aggregator},
		{"https://in.talent.com/view?id=1", Aggregator},
		{"https://builtin.com/job/backend/1", Aggregator},
		{"https://careers.acme.com/jobs/1", Generic},
		{"not a url", Generic},
		{"", Generic},
		{"https://notlinkedin.com/jobs/1", Generic},
	}
	for _, tt := range tests {
		if got := Detect(tt.url); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

type submission struct {
	values   map[string]string
	fileName string
	fileBody string
}

const greenhousePage = `<html><body>
<h1>Backend Engineer</h1>
<form id="application_form" action="/acme/jobs/1/applications" method="post" enctype="multipart/form-data">
  <input type="hidden" name="authenticity_token" value="tok-123">
  <input type="text" name="job_application[first_name]">
  <input type="text" name="job_application[last_name]">
  <input type="email" name="job_application[email]">
  <input type="tel" name="job_application[phone]">
  <input type="file" name="job_application[resume]">
  <textarea name="job_application[cover_letter_text]"></textarea>
  <select name="job_application[source]"><option value="">Pick</option><option value="web" selected>Web</option></select>
  <input type="checkbox" name="job_application[consent]" value="yes" checked>
  <input type="submit" name="commit" value="Submit Application">
</form></body></html>`

func TestFormSession_GreenhouseFlow(t *testing.T) {
	var (
		mu  sync.Mutex
		got submission
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/jobs/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greenhousePage)
	})
	mux.HandleFunc("POST /acme/jobs/1/applications", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		got.values = make(map[string]string)
		for k, v := range r.MultipartForm.Value {
			got.values[k] = v[0]
		}
		f, hdr, err := r.FormFile("job_application[resume]")
		if err == nil {
			body, _ := io.ReadAll(f)
			got.fileName = hdr.Filename
			got.fileBody = string(body)
		}
		fmt.Fprint(w, "<p>Thank you for applying to Acme!</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewFormAdapter(specFor(t, Greenhouse), srv.Client(), discardLogger())
	s := a.NewSession(model.Job{ID: "gh-1", URL: srv.URL + "/acme/jobs/1"})
	ctx := context.Background()

	if err := s.Navigate(ctx); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := s.FillForm(ctx, applicant); err != nil {
		t.Fatalf("FillForm: %v", err)
	}
	if err := s.UploadResume(ctx, model.Resume{FileName: "asha.pdf", Content: []byte("%PDF-resume")}); err != nil {
		t.Fatalf("UploadResume: %v", err)
	}
	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]string{
		"authenticity_token":                 "tok-123",
		"job_application[first_name]":        "Asha",
		"job_application[last_name]":         "Rao",
		"job_application[email]":             "asha@example.com",
		"job_application[phone]":             "+91 98450 00000",
		"job_application[cover_letter_text]": "Dear team, ...",
		"job_application[source]":            "web",
		"job_application[consent]":           "yes",
	}
	for k, v := range want {
		if got.values[k] != v {
			t.Errorf("field %s = %q, want %q", k, got.values[k], v)
		}
	}
	if _, ok := got.values["commit"]; ok {
		t.Error("submit button value should not be posted")
	}
	if got.fileName != "asha.pdf" || got.fileBody != "%PDF-resume" {
		t.Errorf("resume = %q/%q", got.fileName, got.fileBody)
	}

	if err := s.Submit(ctx); stepKind(t, err) != model.StepSubmission {
		t.Errorf("second submit should fail as a submission error, got %v", err)
	}
}

func TestFormSession_LeverFollowsApplyLink(t *testing.T) {
	var posted map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div><a class="postings-btn" href="/acme/abc/apply">Apply for this job</a></div>`)
	})
	mux.HandleFunc("GET /acme/abc/apply", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form id="application-form" method="POST">
			<input name="name"><input name="email"><input name="phone">
			<textarea name="comments"></textarea></form>`)
	})
	mux.HandleFunc("POST /acme/abc/apply", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		_ = r.ParseForm()
		posted = map[string]string{
			"name":     r.PostForm.Get("name"),
			"email":    r.PostForm.Get("email"),
			"comments": r.PostForm.Get("comments"),
		}
		fmt.Fprint(w, "<h2>Application submitted!</h2>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewFormAdapter(specFor(t, Lever), srv.Client(), discardLogger())
	s := a.NewSession(model.Job{ID: "lv-1", URL: srv.URL + "/acme/abc"})
	ctx := context.Background()

	if err := s.Navigate(ctx); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := s.FillForm(ctx, applicant); err != nil {
		t.Fatalf("FillForm: %v", err)
	}
	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if posted["name"] != "Asha Rao" || posted["email"] != "asha@example.com" || posted["comments"] != "Dear team, ..." {
		t.Errorf("posted = %v", posted)
	}
}

func TestFormSession_SubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /job", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form action="/job" method="post"><input type="email" name="email"></form>`)
	})
	mux.HandleFunc("POST /job", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form><p class="field-error">Email   is already registered</p></form>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewFormAdapter(specFor(t, Generic), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL + "/job"})
	ctx := context.Background()
	if err := s.Navigate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.FillForm(ctx, applicant); err != nil {
		t.Fatal(err)
	}
	err := s.Submit(ctx)
	if stepKind(t, err) != model.StepSubmission {
		t.Fatalf("expected submission error, got %v", err)
	}
	if want := "submission failed: form rejected: Email is already registered"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestFormSession_MissingConfirmation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/jobs/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greenhousePage)
	})
	mux.HandleFunc("POST /acme/jobs/1/applications", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>Please try again later</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewFormAdapter(specFor(t, Greenhouse), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL + "/acme/jobs/1"})
	ctx := context.Background()
	_ = s.Navigate(ctx)
	_ = s.FillForm(ctx, applicant)
	if err := s.Submit(ctx); stepKind(t, err) != model.StepSubmission {
		t.Errorf("expected submission error, got %v", err)
	}
}

func TestFormSession_FormNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>This job is closed.</p>`)
	}))
	defer srv.Close()

	s := NewFormAdapter(specFor(t, Greenhouse), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL})
	ctx := context.Background()
	if err := s.Navigate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.FillForm(ctx, applicant); stepKind(t, err) != model.StepElementNotFound {
		t.Errorf("expected element-not-found, got %v", err)
	}
}

func TestFormSession_NoKnownFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form><input type="email" name="contact_addr"><textarea name="q"></textarea></form>`)
	}))
	defer srv.Close()

	s := NewFormAdapter(specFor(t, Generic), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL})
	ctx := context.Background()
	_ = s.Navigate(ctx)
	if err := s.FillForm(ctx, applicant); stepKind(t, err) != model.StepElementNotFound {
		t.Errorf("expected element-not-found, got %v", err)
	}
	if err := s.UploadResume(ctx, model.Resume{FileName: "cv.pdf"}); stepKind(t, err) != model.StepElementNotFound {
		t.Errorf("expected element-not-found for missing file input, got %v", err)
	}
}

func TestFormSession_NavigateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-r.Context().Done()
			return
		}
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewFormAdapter(specFor(t, Generic), srv.Client(), discardLogger())

	err := a.NewSession(model.Job{URL: srv.URL + "/down"}).Navigate(context.Background())
	if stepKind(t, err) != model.StepNavigation {
		t.Errorf("expected navigation error, got %v", err)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 503 || httpErr.RetryAfter != 3*time.Second {
		t.Errorf("expected wrapped 503 with Retry-After, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = a.NewSession(model.Job{URL: srv.URL + "/slow"}).Navigate(ctx)
	if stepKind(t, err) != model.StepTimeout {
		t.Errorf("expected timeout, got %v", err)
	}

	err = a.NewSession(model.Job{}).Navigate(context.Background())
	if stepKind(t, err) != model.StepNavigation {
		t.Errorf("expected navigation error for empty URL, got %v", err)
	}
}

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form class="login__form" action="/checkpoint" method="post">
			<input type="hidden" name="csrf" value="c1">
			<input name="session_key"><input type="password" name="session_password"></form>`)
	})
	mux.HandleFunc("POST /checkpoint", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("csrf") != "c1" || r.PostForm.Get("session_key") != "asha" || r.PostForm.Get("session_password") != "pw" {
			fmt.Fprint(w, `<form class="login__form"><input type="password" name="session_password"></form>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "li_at", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/feed", http.StatusFound)
	})
	mux.HandleFunc("GET /feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>Welcome</p>")
	})
	mux.HandleFunc("GET /jobs/view/1", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("li_at"); err != nil || c.Value != "ok" {
			fmt.Fprint(w, `<a href="/login">Sign in to apply</a>`)
			return
		}
		fmt.Fprint(w, `<form class="jobs-easy-apply-form" action="/jobs/view/1/apply" method="post">
			<input name="phoneNumber"><input type="file" name="resume"></form>`)
	})
	mux.HandleFunc("POST /jobs/view/1/apply", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>Your application was sent</p>")
	})
	return httptest.NewServer(mux)
}

func TestFormSession_LoginThenApply(t *testing.T) {
	srv := loginServer(t)
	defer srv.Close()

	a := NewFormAdapter(specFor(t, LinkedIn), srv.Client(), discardLogger())
	if !a.Capabilities().Has(model.CapLogin) {
		t.Fatal("linkedin adapter must advertise login")
	}
	s := a.NewSession(model.Job{URL: srv.URL + "/jobs/view/1"})
	ctx := context.Background()

	if err := s.Navigate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Login(ctx, model.Credential{Username: "asha", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := s.FillForm(ctx, applicant); err != nil {
		t.Fatalf("FillForm after login: %v", err)
	}
	if err := s.UploadResume(ctx, model.Resume{FileName: "cv.pdf", Content: []byte("cv")}); err != nil {
		t.Fatalf("UploadResume: %v", err)
	}
	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestFormSession_LoginRejected(t *testing.T) {
	srv := loginServer(t)
	defer srv.Close()

	s := NewFormAdapter(specFor(t, LinkedIn), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL + "/jobs/view/1"})
	ctx := context.Background()
	_ = s.Navigate(ctx)
	if err := s.Login(ctx, model.Credential{Username: "asha", Password: "wrong"}); stepKind(t, err) != model.StepAuth {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestFormSession_SessionsDoNotShareCookies(t *testing.T) {
	srv := loginServer(t)
	defer srv.Close()

	a := NewFormAdapter(specFor(t, LinkedIn), srv.Client(), discardLogger())
	ctx := context.Background()

	first := a.NewSession(model.Job{URL: srv.URL + "/jobs/view/1"})
	_ = first.Navigate(ctx)
	if err := first.Login(ctx, model.Credential{Username: "asha", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	second := a.NewSession(model.Job{URL: srv.URL + "/jobs/view/1"})
	_ = second.Navigate(ctx)
	if err := second.FillForm(ctx, applicant); stepKind(t, err) != model.StepElementNotFound {
		t.Errorf("fresh session should not see the signed-in form, got %v", err)
	}
}

func TestFormSession_IndeedExternalRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="https://careers.acme.com/apply/1">Apply on company site</a>`)
	}))
	defer srv.Close()

	s := NewFormAdapter(specFor(t, Indeed), srv.Client(), discardLogger()).
		NewSession(model.Job{URL: srv.URL + "/viewjob"})
	ctx := context.Background()
	_ = s.Navigate(ctx)

	err := s.FillForm(ctx, applicant)
	var skip *model.SkipError
	if !errors.As(err, &skip) || skip.Reason != "external-redirect" {
		t.Fatalf("expected external-redirect skip, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(http.DefaultClient, discardLogger())

	if got := r.For("https://jobs.lever.co/acme/1").Name(); got != Lever {
		t.Errorf("lever URL dispatched to %q", got)
	}
	if got := r.For("https://careers.acme.com/1").Name(); got != Generic {
		t.Errorf("unknown URL dispatched to %q", got)
	}
	if caps := r.For("https://www.simplyhired.com/job/1").Capabilities(); caps != model.CapNavigate {
		t.Errorf("aggregator caps = %b, want navigate only", caps)
	}
	if n := len(r.Adapters()); n != len(DefaultSpecs()) {
		t.Errorf("Adapters() returned %d, want %d", n, len(DefaultSpecs()))
	}

	sparse := NewRegistry(NewFormAdapter(specFor(t, Generic), nil, discardLogger()))
	if got := sparse.For("https://www.naukri.com/job/1").Name(); got != Generic {
		t.Errorf("missing platform should fall back to generic, got %q", got)
	}
	if NewRegistry().For("https://x.com") != nil {
		t.Error("empty registry should return nil")
	}
}

func TestRegistry_DryRun(t *testing.T) {
	r := NewRegistry(NewFormAdapter(specFor(t, Generic), nil, discardLogger()))
	r.DryRun()

	a := r.For("https://careers.acme.com/1")
	if a.Name() != Generic || a.Capabilities() != fillAndSubmit {
		t.Fatalf("dry-run adapter should keep name and capabilities, got %s/%b", a.Name(), a.Capabilities())
	}
	err := a.NewSession(model.Job{}).Submit(context.Background())
	var skip *model.SkipError
	if !errors.As(err, &skip) || skip.Reason != "dry-run" {
		t.Errorf("expected dry-run skip, got %v", err)
	}
}
