package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// SubjectPrefix starts every staff e-mail subject so inbox rules can route
// them.
const SubjectPrefix = "[Tablebot]"

const staffTemplates = `
{{define "reservation.confirmed.v1/subject"}}Reservation {{.Code}} confirmed: {{.Short}}, {{.PartySize}} guests{{end}}
{{define "reservation.confirmed.v1/body"}}New reservation {{.Code}}

Guest: {{.Guest}}
Phone: {{.Phone}}
Party size: {{.PartySize}}
Date: {{.Date}}
Time: {{.From}} - {{.To}}
{{end}}
{{define "reservation.cancelled.v1/subject"}}Reservation {{.Code}} cancelled{{end}}
{{define "reservation.cancelled.v1/body"}}Reservation {{.Code}} was cancelled

Guest: {{.Guest}}
Phone: {{.Phone}}
Party size: {{.PartySize}}
Was booked for: {{.Date}} {{.From}}
{{end}}
`

const staffHTMLTemplate = `<h2>{{.Heading}}</h2>
<table>
<tr><th align="left">Code</th><td>{{.Code}}</td></tr>
<tr><th align="left">Guest</th><td>{{.Guest}}</td></tr>
<tr><th align="left">Phone</th><td>{{.Phone}}</td></tr>
<tr><th align="left">Party size</th><td>{{.PartySize}}</td></tr>
<tr><th align="left">Date</th><td>{{.Date}}</td></tr>
<tr><th align="left">Time</th><td>{{.From}}{{if .To}} - {{.To}}{{end}}</td></tr>
</table>
`

var (
	textTemplates = texttemplate.Must(texttemplate.New("staff").Parse(staffTemplates))
	htmlTemplate  = htmltemplate.Must(htmltemplate.New("staff.html").Parse(staffHTMLTemplate))
)

// reservationView is the data the staff templates render. Times are already
// formatted in the restaurant's timezone.
type reservationView struct {
	Code      string
	Guest     string
	Phone     string
	PartySize int
	Date      string
	From      string
	To        string
	Short     string
	Heading   string
}

// render builds the message for kind, one of the reservation event types.
func render(kind, to string, v reservationView) (Message, error) {
	var subject, text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&subject, kind+"/subject", v); err != nil {
		return Message{}, fmt.Errorf("notify: render %s subject: %w", kind, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, kind+"/body", v); err != nil {
		return Message{}, fmt.Errorf("notify: render %s body: %w", kind, err)
	}
	if err := htmlTemplate.Execute(&html, v); err != nil {
		return Message{}, fmt.Errorf("notify: render %s html: %w", kind, err)
	}
	return Message{
		To:      to,
		Subject: SubjectPrefix + " " + subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
		Code:    v.Code,
		Kind:    kind,
	}, nil
}
