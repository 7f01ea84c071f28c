package web

import "html/template"

// Pages share one base layout; each driver template redefines the
// content block, so every page gets its own clone of the base.
const baseTmpl = `{{define "base"}}<!DOCTYPE html>
<html>
<head><title>{{.Title}} - Coding Study</title></head>
<body>
<main>
{{template "content" .}}
</main>
{{if .Next}}<p><a href="/{{.Next}}">Continue</a></p>{{end}}
</body>
</html>{{end}}`

var pageTmpls = map[string]string{
	"home": `{{define "content"}}<h1>Welcome to the coding study</h1>
<p>Thank you for taking part. This session walks you through consent,
a short questionnaire, a tutorial and the programming task.</p>{{end}}`,

	"consent": `{{define "content"}}<h1>Consent</h1>
<p>Please read the study conditions carefully before you continue.</p>{{end}}`,

	"background_questionnaire": `{{define "content"}}<h1>Background questionnaire</h1>
<p>Tell us about your programming background.</p>{{end}}`,

	"tutorial": `{{define "content"}}<h1>Tutorial</h1>
<p>Your editor has opened the tutorial project. Work through it at your
own pace, then continue to the task.</p>{{end}}`,

	"task": `{{define "content"}}<h1>Programming task</h1>
<p>Your editor has opened the task repository on branch {{.Branch}}.
Your work is saved automatically.</p>
<p>Condition: {{.Condition}}</p>{{end}}`,

	"ux_questionnaire": `{{define "content"}}<h1>Experience questionnaire</h1>
<p>Your work has been saved. Please tell us about your experience.</p>{{end}}`,

	"goodbye": `{{define "content"}}<h1>Thank you</h1>
<p>This session is complete. You can close this window.</p>{{end}}`,

	"welcome_back": `{{define "content"}}<h1>Welcome back</h1>
<p>Good to see you again. You will continue working on the task from
your first session.</p>{{end}}`,
}

func loadTemplates() (appTemplates, error) {
	tmpl := make(appTemplates, len(pageTmpls))
	for name, content := range pageTmpls {
		t, err := template.New(name).Parse(baseTmpl)
		if err != nil {
			return nil, err
		}
		if t, err = t.Parse(content); err != nil {
			return nil, err
		}
		tmpl[name] = t
	}
	return tmpl, nil
}
