package report

import (
	"fmt"
	"html/template"
	"os"

	"github.com/Masterminds/sprig/v3"
)

var shortcutTemplate = template.Must(template.New("shortcut").Funcs(sprig.HtmlFuncMap()).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url={{ .RemoteURL }}">
<title>{{ .Campaign | trunc 80 }} - {{ printf "%s" .Verdict | upper }}</title>
</head>
<body>
<p>Campaign <b>{{ .Campaign }}</b> finished {{ .End | date "2006-01-02 15:04:05" }} with verdict {{ .Verdict }}.</p>
<p>Executed {{ .Metrics.TCExecutedCount }} test case(s), pass rate {{ .Metrics.PassRate | printf "%.2f" }}%.</p>
<p>Redirecting to <a href="{{ .RemoteURL }}">{{ .RemoteURL }}</a>.</p>
</body>
</html>
`))

// WriteShortcut writes CampaignReport.html redirecting to the remote
// campaign page. Nothing is written when no remote URL is known.
func (t *Tree) WriteShortcut(o Outcome) (string, error) {
	if o.RemoteURL == "" {
		return "", nil
	}
	f, err := os.Create(t.Path(ShortcutFile))
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", ShortcutFile, err)
	}
	defer f.Close()
	if err := shortcutTemplate.Execute(f, o); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", ShortcutFile, err)
	}
	return f.Name(), nil
}
