// Package email defines the message model consumed by the analysis engine.
// Messages arrive fully parsed from the ingestion layer; this package never
// reads raw mail files itself.
package email

import (
	"sort"
	"strings"
	"time"
)

// Question is a question extracted from a message body.
type Question struct {
	Text        string `json:"question"`
	NeedsAnswer bool   `json:"needs_answer"`
}

// Answer is an answer extracted from a message body, together with a
// free-text reference to the question it answers.
type Answer struct {
	Text            string `json:"answer"`
	AnswersQuestion string `json:"answers_question"`
}

// Metadata carries the reply-detection and question/answer structure the
// ingestion layer extracted from a message.
type Metadata struct {
	// ReplyToSubject is the subject of the message this one replies to,
	// when the extractor could identify one.
	ReplyToSubject string `json:"is_reply_to_subject,omitempty"`

	// ReplyToSender is the sender of the message being replied to.
	ReplyToSender string `json:"replying_to_from,omitempty"`

	// ReplyToDate is the (possibly approximate) date of the replied-to
	// message, as reported by the extractor.
	ReplyToDate string `json:"replying_to_date,omitempty"`

	QuestionsAsked  []Question `json:"questions_asked,omitempty"`
	AnswersProvided []Answer   `json:"answers_provided,omitempty"`

	// QuotedText is any quoted prior-message text found in the body.
	QuotedText string `json:"quoted_text,omitempty"`
}

// Message is an immutable parsed email message.
//
// A message with a zero Date is excluded from all downstream analysis.
type Message struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Date        time.Time `json:"date"`
	From        string    `json:"from_email"`
	FromName    string    `json:"from_name,omitempty"`
	To          []string  `json:"to_emails"`
	Cc          []string  `json:"cc_emails,omitempty"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`

	// IsInternal is true when every participant belongs to the
	// organization's domain.
	IsInternal bool `json:"is_internal"`

	// Embedding is the optional semantic vector for the body, produced by
	// the embedding provider. Empty when unavailable.
	Embedding []float32 `json:"embedding,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// HasTimestamp reports whether the message carries a usable timestamp.
func (m *Message) HasTimestamp() bool {
	return !m.Date.IsZero()
}

// Participants returns the sender and all recipients, without deduplication.
func (m *Message) Participants() []string {
	out := make([]string, 0, 1+len(m.To)+len(m.Cc))
	if m.From != "" {
		out = append(out, m.From)
	}
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return out
}

// OpenQuestions returns the questions in this message that still need an
// answer according to the extractor.
func (m *Message) OpenQuestions() []Question {
	var out []Question
	for _, q := range m.Metadata.QuestionsAsked {
		if q.NeedsAnswer {
			out = append(out, q)
		}
	}
	return out
}

// InDomain reports whether addr belongs to the given organization domain.
func InDomain(addr, domain string) bool {
	if addr == "" || domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(addr), "@"+strings.ToLower(domain))
}

// SortByDate sorts messages chronologically, in place. Equal timestamps keep
// their input order.
func SortByDate(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date.Before(msgs[j].Date)
	})
}
