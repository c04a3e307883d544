package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInDomain(t *testing.T) {
	tests := []struct {
		name   string
		addr   string
		domain string
		want   bool
	}{
		{"matching domain", "anna@kisjozsitech.hu", "kisjozsitech.hu", true},
		{"case insensitive", "Anna@KisJozsiTech.HU", "kisjozsitech.hu", true},
		{"external domain", "client@partner.com", "kisjozsitech.hu", false},
		{"empty address", "", "kisjozsitech.hu", false},
		{"empty domain", "anna@kisjozsitech.hu", "", false},
		{"domain as suffix of another", "anna@notkisjozsitech.hu", "kisjozsitech.hu", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InDomain(tt.addr, tt.domain))
		})
	}
}

func TestParticipants(t *testing.T) {
	m := &Message{
		From: "a@x.hu",
		To:   []string{"b@x.hu", "c@y.com"},
		Cc:   []string{"d@x.hu"},
	}
	assert.Equal(t, []string{"a@x.hu", "b@x.hu", "c@y.com", "d@x.hu"}, m.Participants())

	empty := &Message{To: []string{"b@x.hu"}}
	assert.Equal(t, []string{"b@x.hu"}, empty.Participants())
}

func TestOpenQuestions(t *testing.T) {
	m := &Message{
		Metadata: Metadata{
			QuestionsAsked: []Question{
				{Text: "When is the deadline?", NeedsAnswer: true},
				{Text: "Nice weather, right?", NeedsAnswer: false},
				{Text: "Who approves the budget?", NeedsAnswer: true},
			},
		},
	}

	open := m.OpenQuestions()
	require.Len(t, open, 2)
	assert.Equal(t, "When is the deadline?", open[0].Text)
	assert.Equal(t, "Who approves the budget?", open[1].Text)
}

func TestSortByDateStable(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []*Message{
		{ID: "c", Date: base.Add(2 * time.Hour)},
		{ID: "a1", Date: base},
		{ID: "a2", Date: base},
		{ID: "b", Date: base.Add(time.Hour)},
	}

	SortByDate(msgs)

	got := make([]string, len(msgs))
	for i, m := range msgs {
		got[i] = m.ID
	}
	// Equal timestamps keep input order.
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, got)
}

func TestHasTimestamp(t *testing.T) {
	assert.False(t, (&Message{}).HasTimestamp())
	assert.True(t, (&Message{Date: time.Now()}).HasTimestamp())
}
