package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/kat-co/vala"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

const (
	successTemplate = "payment_success"
	expiredTemplate = "payment_expired"
)

type templateData struct {
	Name            string
	TransactionCode string
	RedirectURL     string
}

// Mailer tells students how their payment ended.
type Mailer struct {
	mailSvc         core.EmailService
	frontendBaseURL string
	logger          core.Logger
}

func NewMailer(conf *core.Config, mailSvc core.EmailService, logger core.Logger) *Mailer {
	vala.BeginValidation().Validate(
		core.IsNotNil(conf, "conf"),
		core.IsNotNil(mailSvc, "mailSvc"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Mailer{
		mailSvc:         mailSvc,
		frontendBaseURL: conf.FrontendBaseURL,
		logger:          logger,
	}
}

// For returns the actions e-mailing student about their payment for courseID.
// Outcomes replayed from the ledger were already notified and send nothing.
func (m *Mailer) For(student core.Person, courseID string) payment.Actions {
	return payment.ActionFuncs{
		OnSuccess: func(_ context.Context, entry payment.LedgerEntry) {
			m.send(student, courseID, entry, successTemplate, "Your course is unlocked")
		},
		OnExpiry: func(_ context.Context, entry payment.LedgerEntry) {
			m.send(student, courseID, entry, expiredTemplate, "Your payment has expired")
		},
	}
}

func (m *Mailer) send(student core.Person, courseID string, entry payment.LedgerEntry, tmpl, subject string) {
	if entry.Replayed {
		m.logger.Debug(fmt.Sprintf("payment %s: %s already notified", entry.TransactionCode, entry.Status))
		return
	}
	if student.Email == "" {
		m.logger.Warn(fmt.Sprintf("payment %s: student %q has no e-mail, not notified", entry.TransactionCode, student.ID), student)
		return
	}

	name := student.Name
	if name == "" {
		name = student.Username
	}
	m.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: templateData{
			Name:            name,
			TransactionCode: entry.TransactionCode.String(),
			RedirectURL:     payment.RedirectURL(m.frontendBaseURL, entry.Status, courseID),
		},
	})
}
