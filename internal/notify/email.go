package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/calebwray/tock/internal/model"
	"github.com/calebwray/tock/internal/schedule"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type EmailSender struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*EmailSender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *EmailSender) {
		s.httpClient = c
	}
}

func NewEmailSender(serverToken, fromEmail, baseURL string, opts ...Option) *EmailSender {
	s := &EmailSender{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured returns true if the server token is set.
func (s *EmailSender) Configured() bool {
	return s.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendReminder delivers one fired notification by email. Transient failures
// (network errors, 5xx) are retried with exponential backoff; client errors
// are not.
func (s *EmailSender) SendReminder(ctx context.Context, user *model.User, r model.Reminder, ev schedule.Event) error {
	if !s.Configured() {
		return fmt.Errorf("email sender not configured: missing server token")
	}

	subject, intro := describeEvent(r, ev)
	link := fmt.Sprintf("%s/reminders/%d", s.baseURL, r.ID)
	textBody := fmt.Sprintf("%s\n\nDue: %s\n\n%s", intro, r.DueDate.Format("Mon, 2 Jan 2006 15:04"), link)
	htmlBody := fmt.Sprintf(
		`<p>%s</p><p>Due: %s</p><p><a href="%s">Open reminder</a></p>`,
		intro, r.DueDate.Format("Mon, 2 Jan 2006 15:04"), link,
	)

	payload := postmarkEmail{
		From:     s.fromEmail,
		To:       user.Email,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Postmark-Server-Token", s.serverToken)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("postmark API error: status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
		}
		return nil
	})
}

// describeEvent maps a scheduling event to a subject line and lead sentence.
func describeEvent(r model.Reminder, ev schedule.Event) (subject, intro string) {
	switch ev.Kind {
	case schedule.KindAdvance:
		return fmt.Sprintf("Upcoming: %s", r.Title),
			fmt.Sprintf("Heads up, %q is coming due.", r.Title)
	case schedule.KindRepeat:
		return fmt.Sprintf("Still pending: %s", r.Title),
			fmt.Sprintf("%q is still waiting on you.", r.Title)
	case schedule.KindExact:
		return fmt.Sprintf("Due now: %s", r.Title),
			fmt.Sprintf("%q is due right now.", r.Title)
	case schedule.KindPreDue:
		return fmt.Sprintf("Due in %d day(s): %s", ev.OffsetDays, r.Title),
			fmt.Sprintf("%q is due in %d day(s).", r.Title, ev.OffsetDays)
	default:
		return fmt.Sprintf("Reminder: %s", r.Title),
			fmt.Sprintf("%q needs your attention.", r.Title)
	}
}
