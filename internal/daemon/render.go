package daemon

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"
)

var unitTmpl = template.Must(template.New("unit").Parse(`[Unit]
Description=RAIN AI agent web console
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Exec}}{{range .Args}} {{.}}{{end}}
Restart=on-failure
RestartSec=10
StandardOutput=append:{{.Log}}
StandardError=append:{{.Log}}

[Install]
WantedBy=default.target
`))

var plistTmpl = template.Must(template.New("plist").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
  "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{xml .Exec}}</string>
{{- range .Args}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{xml .Log}}</string>
    <key>StandardErrorPath</key>
    <string>{{xml .Log}}</string>
</dict>
</plist>
`))

type unitData struct {
	Label string
	Exec  string
	Args  []string
	Log   string
}

func renderUnit(execPath string, args []string, logPath string) string {
	var buf bytes.Buffer
	_ = unitTmpl.Execute(&buf, unitData{Exec: execPath, Args: args, Log: logPath})
	return buf.String()
}

func renderPlist(execPath string, args []string, logPath string) string {
	var buf bytes.Buffer
	_ = plistTmpl.Execute(&buf, unitData{Label: label, Exec: execPath, Args: args, Log: logPath})
	return buf.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
