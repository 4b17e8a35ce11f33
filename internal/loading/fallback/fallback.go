// Package fallback renders the views shown in place of a remote: the error
// view of a failed mount and the placeholder of a loading one.
package fallback

import (
	"html/template"
	"io"

	"github.com/vietddude/shell/internal/core/domain"
)

// View is the input of the error view.
type View struct {
	Remote      string
	DisplayName string
	Err         error
	RetryCount  int
	OriginHint  string
	RetryURL    string
	Dev         bool
}

// Placeholder is the input of the loading view.
type Placeholder struct {
	Remote      string
	DisplayName string
	StateURL    string
	PollEvery   int // milliseconds
}

type errorData struct {
	Remote      string
	Title       string
	Explanation string
	Kind        domain.FailureKind
	Message     string
	RetryCount  int
	OriginHint  string
	RetryURL    string
	Dev         bool
}

var explanations = map[domain.FailureKind]string{
	domain.FailureLoad:    "could not be downloaded. The service that hosts it may be down or unreachable.",
	domain.FailureTimeout: "took too long to respond and was given up on.",
	domain.FailureRender:  "loaded, but crashed while displaying.",
}

var errorTemplate = template.Must(template.New("fallback").Parse(`<section class="remote-fallback" role="alert" data-remote="{{.Remote}}" data-failure="{{.Kind}}">
    <h2>{{.Title}} is unavailable</h2>
    <p>{{.Title}} {{.Explanation}} The rest of the site still works.</p>
    {{if gt .RetryCount 0}}<p class="remote-fallback-retries">Retried {{.RetryCount}} time{{if gt .RetryCount 1}}s{{end}}.</p>{{end}}
    {{if .RetryURL}}<form method="post" action="{{.RetryURL}}">
        <button type="submit">Try again</button>
    </form>{{end}}
    {{if .Dev}}
    <pre>{{.Message}}</pre>
    {{else}}
    <details>
        <summary>Error details</summary>
        <pre id="remote-error-{{.Remote}}">{{if .OriginHint}}origin: {{.OriginHint}}
{{end}}kind: {{.Kind}}
{{.Message}}</pre>
        <button type="button" onclick="navigator.clipboard.writeText(document.getElementById('remote-error-{{.Remote}}').textContent)">Copy</button>
    </details>
    {{end}}
</section>`))

var placeholderTemplate = template.Must(template.New("placeholder").Parse(`<section class="remote-loading" aria-busy="true" data-remote="{{.Remote}}">
    <p>Loading {{.DisplayName}}…</p>
    {{if .StateURL}}<script>
    (function () {
        var timer = setInterval(function () {
            fetch({{.StateURL}}, { credentials: "same-origin" })
                .then(function (r) { return r.json(); })
                .then(function (s) {
                    if (s.phase !== "loading") { clearInterval(timer); location.reload(); }
                })
                .catch(function () {});
        }, {{.PollEvery}});
    })();
    </script>{{end}}
</section>`))

// Render writes the error view for v.
func Render(w io.Writer, v View) error {
	title := v.DisplayName
	if title == "" {
		title = v.Remote
	}
	kind := domain.Classify(v.Err)
	if kind == "" {
		kind = domain.FailureRender
	}
	message := "unknown error"
	if v.Err != nil {
		message = v.Err.Error()
	}

	return errorTemplate.Execute(w, errorData{
		Remote:      v.Remote,
		Title:       title,
		Explanation: explanations[kind],
		Kind:        kind,
		Message:     message,
		RetryCount:  v.RetryCount,
		OriginHint:  v.OriginHint,
		RetryURL:    v.RetryURL,
		Dev:         v.Dev,
	})
}

// RenderPlaceholder writes the loading view for p.
func RenderPlaceholder(w io.Writer, p Placeholder) error {
	if p.DisplayName == "" {
		p.DisplayName = p.Remote
	}
	if p.PollEvery <= 0 {
		p.PollEvery = 1000
	}
	return placeholderTemplate.Execute(w, p)
}

// For returns a boundary fallback that renders the error view. view is
// called at render time so the retry count is current.
func For(view func() View) func(w io.Writer, err error) error {
	return func(w io.Writer, err error) error {
		v := view()
		v.Err = err
		return Render(w, v)
	}
}
