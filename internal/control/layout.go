package control

import (
	"html/template"
	"strings"
)

type navLink struct {
	Name  string
	Route string
}

type layoutData struct {
	Title    string
	Path     string
	Active   string
	Nav      []navLink
	Region   template.HTML
	Home     bool
	NotFound bool
}

var layoutTemplate = template.Must(template.New("layout").Funcs(template.FuncMap{
	"trimSlash": func(s string) string { return strings.TrimSuffix(s, "/") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
</head>
<body>
<header class="shell-header">
    <a class="shell-home" href="/">Home</a>
    <nav class="shell-nav">
        {{- range .Nav}}
        <a href="{{trimSlash .Route}}"{{if eq .Route $.Active}} aria-current="page"{{end}}>{{.Name}}</a>
        {{- end}}
    </nav>
</header>
<main class="shell-main" id="remote-region">
{{- if .Home}}
    <h1>Welcome</h1>
    <ul class="shell-remotes">
        {{- range .Nav}}
        <li><a href="{{trimSlash .Route}}">{{.Name}}</a></li>
        {{- end}}
    </ul>
{{- else if .NotFound}}
    <h1>Page not found</h1>
    <p>Nothing lives at <code>{{.Path}}</code>.</p>
{{- else}}
{{.Region}}
{{- end}}
</main>
<footer class="shell-footer"></footer>
</body>
</html>
`))
