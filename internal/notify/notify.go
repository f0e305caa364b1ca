// Package notify delivers review requests to professors.
//
// Delivery is best effort. A failed send is reported through Result and
// never returned as an error, so callers cannot mistake a mail outage for
// a failed state transition.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/sakif/learnify/internal/config"
	"github.com/sakif/learnify/internal/metrics"
)

const (
	ReasonNotConfigured = "smtp_not_configured"
	ReasonSendFailed    = "smtp_send_failed"
)

// ReviewRequest is everything the professor needs to open a review.
type ReviewRequest struct {
	To             string
	CourseName     string
	CourseLevel    string
	CourseCategory string
	Link           string
}

// Result reports how delivery went. Missing lists the unset settings for
// ReasonNotConfigured; Message carries the transport error text for
// ReasonSendFailed.
type Result struct {
	OK      bool
	Reason  string
	Missing []string
	Message string
}

// Dispatcher sends review requests.
type Dispatcher interface {
	SendReviewRequest(ctx context.Context, req ReviewRequest) Result
}

// sender is the part of *gomail.Dialer used here.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher sends review requests over SMTP.
type SMTPDispatcher struct {
	cfg    config.SMTP
	logger *slog.Logger
	dial   func(host string, port int, user, pass string) sender
}

func NewSMTPDispatcher(cfg config.SMTP, logger *slog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:    cfg,
		logger: logger,
		dial: func(host string, port int, user, pass string) sender {
			// NewDialer switches to implicit TLS on 465 and STARTTLS otherwise.
			return gomail.NewDialer(host, port, user, pass)
		},
	}
}

// SendReviewRequest builds and sends the review mail. A recipient-less
// request goes to PROFESSOR_EMAIL when that is set.
func (d *SMTPDispatcher) SendReviewRequest(ctx context.Context, req ReviewRequest) Result {
	result := d.send(ctx, req)
	label := "sent"
	if !result.OK {
		label = result.Reason
	}
	metrics.Notifications.WithLabelValues(label).Inc()
	return result
}

func (d *SMTPDispatcher) send(ctx context.Context, req ReviewRequest) Result {
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = strings.TrimSpace(d.cfg.ProfessorEmail)
	}
	from := d.cfg.From
	if from == "" {
		from = d.cfg.User
	}

	var missing []string
	if d.cfg.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	port, err := strconv.Atoi(d.cfg.Port)
	if err != nil || port <= 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if d.cfg.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if d.cfg.Pass == "" {
		missing = append(missing, "SMTP_PASS")
	}
	if from == "" {
		missing = append(missing, "SMTP_FROM")
	}
	if to == "" {
		missing = append(missing, "PROFESSOR_EMAIL")
	}
	if len(missing) > 0 {
		d.logger.Warn("review request not sent: SMTP not configured",
			slog.String("missing", strings.Join(missing, ",")),
		)
		return Result{Reason: ReasonNotConfigured, Missing: missing}
	}

	if err := ctx.Err(); err != nil {
		return Result{Reason: ReasonSendFailed, Message: err.Error()}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", Subject(req.CourseName))
	m.SetBody("text/plain", Body(req))

	if err := d.dial(d.cfg.Host, port, d.cfg.User, d.cfg.Pass).DialAndSend(m); err != nil {
		d.logger.Error("review request send failed",
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return Result{Reason: ReasonSendFailed, Message: err.Error()}
	}

	d.logger.Info("review request sent", slog.String("to", to))
	return Result{OK: true}
}

// Subject is the mail subject for a review request.
func Subject(courseName string) string {
	return fmt.Sprintf("Course verification requested: %s", orDefault(courseName, "Untitled course"))
}

// Body is the plain-text mail body for a review request.
func Body(req ReviewRequest) string {
	return strings.Join([]string{
		"A student submitted AI-generated course content for verification.",
		"",
		"Course: " + orDefault(req.CourseName, "-"),
		"Level: " + orDefault(req.CourseLevel, "-"),
		"Category: " + orDefault(req.CourseCategory, "-"),
		"",
		"Review and provide feedback (approve or request changes) at:",
		req.Link,
		"",
		"If you did not expect this email, you can ignore it.",
	}, "\n")
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
