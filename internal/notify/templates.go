package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Event types, named <kind>_<decision>
const (
	EventSupplierApproved = "supplier_approved"
	EventSupplierRejected = "supplier_rejected"
	EventBuyerApproved    = "buyer_approved"
	EventBuyerRejected    = "buyer_rejected"
	EventProductApproved  = "product_approved"
	EventProductRejected  = "product_rejected"
)

// AllEvents lists every event the workflow can emit.
var AllEvents = []string{
	EventSupplierApproved, EventSupplierRejected,
	EventBuyerApproved, EventBuyerRejected,
	EventProductApproved, EventProductRejected,
}

// Template is the raw subject/body source for one event.
type Template struct {
	Subject string
	Body    string
}

// TemplateSet renders a Message for the events it knows.
type TemplateSet interface {
	Has(eventType string) bool
	Render(eventType string, data map[string]string) (Message, error)
}

type executor interface {
	Execute(w *bytes.Buffer, data map[string]string) error
}

type compiledTemplate struct {
	subject executor
	body    executor
}

type templateSet map[string]compiledTemplate

func (s templateSet) Has(eventType string) bool {
	_, ok := s[eventType]
	return ok
}

func (s templateSet) Render(eventType string, data map[string]string) (Message, error) {
	tpl, ok := s[eventType]
	if !ok {
		return Message{}, fmt.Errorf("no template for event %s", eventType)
	}

	var subject, body bytes.Buffer
	if tpl.subject != nil {
		if err := tpl.subject.Execute(&subject, data); err != nil {
			return Message{}, fmt.Errorf("render subject for %s: %w", eventType, err)
		}
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body for %s: %w", eventType, err)
	}

	return Message{
		EventType: eventType,
		Subject:   subject.String(),
		Body:      body.String(),
		Data:      data,
	}, nil
}

type textExec struct{ t *texttemplate.Template }

func (e textExec) Execute(w *bytes.Buffer, data map[string]string) error { return e.t.Execute(w, data) }

type htmlExec struct{ t *htmltemplate.Template }

func (e htmlExec) Execute(w *bytes.Buffer, data map[string]string) error { return e.t.Execute(w, data) }

// TextTemplates compiles plain-text templates. Missing data keys render as empty strings.
func TextTemplates(src map[string]Template) (TemplateSet, error) {
	set := make(templateSet, len(src))
	for event, t := range src {
		body, err := texttemplate.New(event).Option("missingkey=zero").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", event, err)
		}
		ct := compiledTemplate{body: textExec{body}}
		if t.Subject != "" {
			subject, err := texttemplate.New(event + ".subject").Option("missingkey=zero").Parse(t.Subject)
			if err != nil {
				return nil, fmt.Errorf("parse %s subject: %w", event, err)
			}
			ct.subject = textExec{subject}
		}
		set[event] = ct
	}
	return set, nil
}

// HTMLTemplates compiles HTML bodies with contextual escaping; subjects stay plain text.
func HTMLTemplates(src map[string]Template) (TemplateSet, error) {
	set := make(templateSet, len(src))
	for event, t := range src {
		body, err := htmltemplate.New(event).Option("missingkey=zero").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", event, err)
		}
		ct := compiledTemplate{body: htmlExec{body}}
		if t.Subject != "" {
			subject, err := texttemplate.New(event + ".subject").Option("missingkey=zero").Parse(t.Subject)
			if err != nil {
				return nil, fmt.Errorf("parse %s subject: %w", event, err)
			}
			ct.subject = textExec{subject}
		}
		set[event] = ct
	}
	return set, nil
}

// EmailTemplates are sent to the applicant's address.
var EmailTemplates = map[string]Template{
	EventSupplierApproved: {
		Subject: "Your Supplier Application Approved!",
		Body: `<h1>Congratulations!</h1>
<p>Your supplier application for <strong>{{.company_name}}</strong> has been approved.</p>
<p>You can now start listing products on our platform.</p>`,
	},
	EventBuyerApproved: {
		Subject: "Your Buyer Application Approved!",
		Body: `<h1>Congratulations!</h1>
<p>Your buyer application for <strong>{{.company_name}}</strong> has been approved.</p>
<p>You can now start placing orders on our platform.</p>`,
	},
	EventSupplierRejected: {
		Subject: "Supplier Application Status Update",
		Body: `<h1>Application Update</h1>
<p>We're sorry, but your supplier application for <strong>{{.company_name}}</strong> has been rejected.</p>
<p><strong>Reason:</strong> {{if .rejection_reason}}{{.rejection_reason}}{{else}}Not specified{{end}}</p>
<p>Please contact support if you have any questions.</p>`,
	},
	EventBuyerRejected: {
		Subject: "Buyer Application Status Update",
		Body: `<h1>Application Update</h1>
<p>We're sorry, but your buyer application for <strong>{{.company_name}}</strong> has been rejected.</p>
<p><strong>Reason:</strong> {{if .rejection_reason}}{{.rejection_reason}}{{else}}Not specified{{end}}</p>
<p>Please contact support if you have any questions.</p>`,
	},
}

// TelegramTemplates go to the operations chat.
var TelegramTemplates = map[string]Template{
	EventProductApproved: {
		Body: "New Product Approved!\n\nProduct: {{.product_name}}\nCategory: {{.category}}\nPrice: ₹{{.price}}\nMOQ: {{.min_order_quantity}}\n\nSupplier: {{.supplier_name}}",
	},
	EventSupplierApproved: {
		Body: "New supplier approved: {{.company_name}} ({{.email}})",
	},
	EventBuyerApproved: {
		Body: "New buyer approved: {{.company_name}} ({{.email}})",
	},
}

// DashboardTemplates cover every event so admin dashboards refresh their pending lists.
var DashboardTemplates = func() map[string]Template {
	m := make(map[string]Template, len(AllEvents))
	for _, e := range AllEvents {
		m[e] = Template{Body: e}
	}
	return m
}()
