package response

import (
	"context"
	"strings"

	"github.com/refurd/portfolio-health-system/internal/email"
)

// FindFlows traces reply edges and determines who is still waiting for a
// response.
//
// A flow edge is recorded when a message declares a reply-target subject and
// sender and a matching earlier message exists. A sender's question-bearing
// message is "waiting for response" unless some flow edge from that
// sender/date carries an answer.
func (t *Tracker) FindFlows(ctx context.Context, msgs []*email.Message) FlowAnalysis {
	sorted := sortedWithDates(msgs)

	var flows []Flow
	for i, msg := range sorted {
		replySubject := msg.Metadata.ReplyToSubject
		if replySubject == "" {
			continue
		}

		// Search backward for the nearest prior message from the declared
		// sender whose subject contains the declared reply target.
		var original *email.Message
		for j := i - 1; j >= 0; j-- {
			prev := sorted[j]
			if msg.Metadata.ReplyToSender == prev.From &&
				strings.Contains(prev.Subject, replySubject) {
				original = prev
				break
			}
		}
		if original == nil {
			continue
		}

		flows = append(flows, Flow{
			OriginalSubject:   original.Subject,
			OriginalFrom:      original.From,
			OriginalDate:      original.Date,
			ReplyFrom:         msg.From,
			ReplyDate:         msg.Date,
			ResponseTimeHours: msg.Date.Sub(original.Date).Hours(),
			ContainsAnswer:    len(msg.Metadata.AnswersProvided) > 0,
		})
	}

	now := timeNow()
	var waiting []Waiting
	for _, msg := range sorted {
		if len(msg.Metadata.QuestionsAsked) == 0 {
			continue
		}

		answered := false
		for _, flow := range flows {
			if flow.OriginalFrom == msg.From &&
				flow.OriginalDate.Equal(msg.Date) &&
				flow.ContainsAnswer {
				answered = true
				break
			}
		}
		if answered {
			continue
		}

		waiting = append(waiting, Waiting{
			WaitingFrom: msg.From,
			Subject:     msg.Subject,
			SentDate:    msg.Date,
			DaysWaiting: wholeDays(msg.Date, now),
			Questions:   msg.Metadata.QuestionsAsked,
		})
	}

	return FlowAnalysis{
		Flows:              flows,
		WaitingForResponse: waiting,
	}
}
