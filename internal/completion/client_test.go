package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_Messages_FlattensHistory(t *testing.T) {
	req := Request{
		Prompt: "and now?",
		History: History{
			{User: "hi", Assistant: "hello"},
			{User: "pending", Assistant: ""},
			{User: "", Assistant: "orphan answer"},
		},
	}

	got := req.Messages()
	want := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "pending"},
		{Role: RoleAssistant, Content: "orphan answer"},
		{Role: RoleUser, Content: "and now?"},
	}
	assert.Equal(t, want, got)
}

func TestRequest_Messages_NoHistory(t *testing.T) {
	got := Request{Prompt: "2+2?"}.Messages()
	assert.Equal(t, []Message{{Role: RoleUser, Content: "2+2?"}}, got)
}

func TestSampling_Control(t *testing.T) {
	tests := []struct {
		temp float64
		want float64
	}{
		{temp: 0.7, want: 0.35},
		{temp: 2.0, want: 1.0},
		{temp: 0.1, want: 0.1},
		{temp: 0.0, want: 0.1},
	}
	for _, tt := range tests {
		s := Sampling{Temperature: tt.temp, TopP: 0.9, TopK: 40}
		c := s.Control()
		assert.InDelta(t, tt.want, c.Temperature, 1e-9, "temperature %v", tt.temp)
		assert.Equal(t, 0.9, c.TopP)
		assert.Equal(t, 40, c.TopK)
		assert.Equal(t, tt.temp, s.Temperature, "Control must not mutate the receiver")
	}
}

func TestSampling_OptionalHints(t *testing.T) {
	assert.False(t, Sampling{TopP: 1.0}.TopPEnabled())
	assert.True(t, Sampling{TopP: 0.95}.TopPEnabled())
	assert.False(t, Sampling{TopK: 0}.TopKEnabled())
	assert.True(t, Sampling{TopK: 1}.TopKEnabled())
}

func TestHistory_Clone(t *testing.T) {
	h := History{{User: "a", Assistant: "b"}}
	c := h.Clone()
	c[0].Assistant = "changed"
	assert.Equal(t, "b", h[0].Assistant)
	assert.Nil(t, History(nil).Clone())
}

func TestSampling_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       Sampling
		wantErr string
	}{
		{name: "defaults", s: Sampling{Temperature: 0.7, TopP: 1}},
		{name: "bounds", s: Sampling{Temperature: 2, TopP: 0, TopK: 0}},
		{name: "negative temperature", s: Sampling{Temperature: -0.1, TopP: 1}, wantErr: "temperature"},
		{name: "temperature too high", s: Sampling{Temperature: 2.5, TopP: 1}, wantErr: "temperature"},
		{name: "top-p too high", s: Sampling{Temperature: 1, TopP: 1.2}, wantErr: "topP"},
		{name: "negative top-k", s: Sampling{Temperature: 1, TopP: 1, TopK: -1}, wantErr: "topK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
