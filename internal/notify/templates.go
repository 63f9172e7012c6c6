package notify

import (
	"fmt"
	"strings"
	"text/template"
)

// Template keys used across the application.
const (
	TemplateWelcome              = "welcome"
	TemplateLoanCreated          = "loan-created"
	TemplateLoanReturned         = "loan-returned"
	TemplateReturnReminder       = "return-reminder"
	TemplateLoanOverdue          = "loan-overdue"
	TemplateReservationQueued    = "reservation-queued"
	TemplateReservationReady     = "reservation-ready"
	TemplateReservationScheduled = "reservation-scheduled"
	TemplateReservationCancelled = "reservation-cancelled"
	TemplateStaffAlert           = "staff-alert"
)

const footer = `
---
School Library System
This is an automated message, please do not reply.`

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]messageTemplate{
	TemplateWelcome: {
		subject: "Welcome to the school library!",
		body: mustParse(TemplateWelcome, `Hello {{.Name}},

Your library account has been created.

Your details:
- Name: {{.Name}}
- Email: {{.Email}}
- Registration number: {{.RA}}
- Class: {{.Class}}
- Role: {{.Role}}

You can now browse the catalog, borrow books and place reservations.

Happy reading!
The Library Team`),
	},
	TemplateLoanCreated: {
		subject: `Loan registered: "{{.Title}}"`,
		body: mustParse(TemplateLoanCreated, `Hello {{.Name}},

Your loan has been registered.

Book: {{.Title}}
Borrowed on: {{.LoanDate}}
Due back: {{.DueDate}}

Please take good care of the book and return it on time.

Happy reading!
The Library Team`),
	},
	TemplateLoanReturned: {
		subject: `Return confirmed: "{{.Title}}"`,
		body: mustParse(TemplateLoanReturned, `Hello {{.Name}},

Thank you for returning the book!

Book: {{.Title}}
Returned on: {{.ReturnDate}}

Come explore the catalog for your next read.

The Library Team`),
	},
	TemplateReturnReminder: {
		subject: `Due soon: "{{.Title}}"`,
		body: mustParse(TemplateReturnReminder, `Hello {{.Name}},

Your loan is due back soon.

Book: {{.Title}}
Due back: {{.DueDate}}

Please return the book to the library by the due date.

The Library Team`),
	},
	TemplateLoanOverdue: {
		subject: `Overdue: "{{.Title}}"`,
		body: mustParse(TemplateLoanOverdue, `Hello {{.Name}},

Your loan is overdue.

Book: {{.Title}}
Was due back: {{.DueDate}}

Please return the book to the library as soon as possible.

The Library Team`),
	},
	TemplateReservationQueued: {
		subject: `You are in the queue: "{{.Title}}"`,
		body: mustParse(TemplateReservationQueued, `Hello {{.Name}},

All copies of this book are currently lent out, but you are in the queue!

Book: {{.Title}}
Your position: {{.Position}}

We will let you know as soon as a copy becomes available.

The Library Team`),
	},
	TemplateReservationReady: {
		subject: `Your turn! "{{.Title}}" is ready for pickup`,
		body: mustParse(TemplateReservationReady, `Hello {{.Name}},

Good news! The book you were waiting for is now available.

Book: {{.Title}}
Pick up by: {{.PickupDeadline}}

Visit the library to pick up your copy. If you do not pick it up in
time, the reservation passes to the next person in the queue.

The Library Team`),
	},
	TemplateReservationScheduled: {
		subject: `Pickup scheduled: "{{.Title}}"`,
		body: mustParse(TemplateReservationScheduled, `Hello {{.Name}},

Your pickup has been scheduled.

Book: {{.Title}}
Pickup date: {{.PickupDate}}
Location: School Library

Please bring your identification when you come.

The Library Team`),
	},
	TemplateReservationCancelled: {
		subject: `Reservation cancelled: "{{.Title}}"`,
		body: mustParse(TemplateReservationCancelled, `Hello {{.Name}},

Your reservation has been cancelled.

Book: {{.Title}}

You can place a new reservation at any time.

The Library Team`),
	},
	TemplateStaffAlert: {
		subject: "Library alert: {{.AlertTitle}}",
		body: mustParse(TemplateStaffAlert, `Hello,

An alert was raised in the library system.

Category: {{.Category}}
Severity: {{.Severity}}
{{if .Title}}Book: {{.Title}}
{{end}}Details: {{.Message}}

Library System`),
	},
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}

// Render produces the subject and body for a template key. Subjects support
// the same placeholders as bodies.
func Render(key string, data map[string]string) (subject, body string, err error) {
	tmpl, ok := templates[key]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", key)
	}

	subjTmpl, err := template.New(key + "-subject").Parse(tmpl.subject)
	if err != nil {
		return "", "", fmt.Errorf("parsing subject: %w", err)
	}

	var subj strings.Builder
	if err := subjTmpl.Execute(&subj, data); err != nil {
		return "", "", fmt.Errorf("rendering subject: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering body: %w", err)
	}
	buf.WriteString("\n" + footer + "\n")

	return subj.String(), buf.String(), nil
}
