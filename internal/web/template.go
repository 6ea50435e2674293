package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/signal-reset/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("2006-01-02 15:04:05 MST")
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Signal Reset</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.armed { color: green; font-weight: bold; }
.unarmed { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Signal Reset</h1>

<h2>Schedule</h2>
<table>
<tr><th>Next reset</th><td id="next" class="{{if .Armed}}armed{{else}}unarmed{{end}}">{{if .Armed}}{{stamp .NextTarget}}{{else}}not armed{{end}}</td></tr>
<tr><th>Fire time</th><td>{{.Config.FireTime}} {{.Config.Timezone}}</td></tr>
<tr><th>Permission</th><td>{{if .PermissionGranted}}granted{{else}}denied{{end}}</td></tr>
{{if .LastTrigger}}<tr><th>Last attempt</th><td>{{.LastTrigger}}: {{.LastOutcome}} at {{stamp .LastAttemptAt}}</td></tr>
{{if .LastError}}<tr><th>Error</th><td class="error">{{.LastError}}</td></tr>{{end}}{{end}}
</table>
<form method="post" action="/schedule"><button type="submit">Re-arm now</button></form>

<h2>State</h2>
<table>
<tr><th>Last signal</th><td id="signal">{{orNone .LastSignal}}</td></tr>
<tr><th>Last reset</th><td>{{orNone .LastResetDate}}</td></tr>
<tr><th>Resets since start</th><td>{{.Resets}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Database</th><td>{{.Config.DB}}</td></tr>
<tr><th>Arm pin</th><td>{{if lt .Config.ArmPin 0}}none{{else}}{{.Config.ArmPin}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/resets">History</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
