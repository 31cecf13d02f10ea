package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsProposalResolve(t *testing.T) {
	def := MatchSettings{Duration: DefaultDuration, SkipPenalty: DefaultSkipPenalty}

	tests := []struct {
		name string
		body string
		want MatchSettings
	}{
		{"missing settings", `{}`, def},
		{"explicit zero penalty", `{"settings":{"duration":30,"skip_penalty":0}}`, MatchSettings{Duration: 30, SkipPenalty: 0}},
		{"duration only", `{"settings":{"duration":45}}`, MatchSettings{Duration: 45, SkipPenalty: DefaultSkipPenalty}},
		{"penalty only", `{"settings":{"skip_penalty":2}}`, MatchSettings{Duration: DefaultDuration, SkipPenalty: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg ClientMessage
			require.NoError(t, json.Unmarshal([]byte(tt.body), &msg))
			assert.Equal(t, tt.want, msg.Settings.Resolve(def))
		})
	}
}

func TestProposeRoundTripsZero(t *testing.T) {
	raw, err := json.Marshal(Propose(MatchSettings{Duration: 30, SkipPenalty: 0}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"duration":30,"skip_penalty":0}`, string(raw))
}

func TestValidateSettings(t *testing.T) {
	assert.NoError(t, MatchSettings{Duration: 30, SkipPenalty: 0}.Validate())
	assert.ErrorIs(t, MatchSettings{Duration: 0, SkipPenalty: 5}.Validate(), ErrInvalidSettings)
	assert.ErrorIs(t, MatchSettings{Duration: MaxDuration + 1}.Validate(), ErrInvalidSettings)
	assert.ErrorIs(t, MatchSettings{Duration: 30, SkipPenalty: -1}.Validate(), ErrInvalidSettings)
}
