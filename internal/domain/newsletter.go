package domain

import "time"

// Article is a single weekly roundup as read from the content directory.
type Article struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Week        int       `json:"week,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Body        string    `json:"-"`
	ReadingTime int       `json:"readingTime"`
}

// Email is a rendered newsletter ready to hand to a Sender.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// DeliveryOutcome records the result of sending to one recipient.
type DeliveryOutcome struct {
	Recipient string `json:"email"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendReport aggregates the outcomes of a newsletter send.
type SendReport struct {
	Slug     string            `json:"slug"`
	Title    string            `json:"roundup"`
	Total    int               `json:"total"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Batches  int               `json:"batches"`
	Outcomes []DeliveryOutcome `json:"-"`
}

// Failures returns the failed outcomes in recipient order.
func (r *SendReport) Failures() []DeliveryOutcome {
	var out []DeliveryOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// TestSendResult is the outcome of a single test send.
type TestSendResult struct {
	Slug      string `json:"slug"`
	Title     string `json:"roundup"`
	Recipient string `json:"email"`
	MessageID string `json:"messageId"`
}
