package gemini

import (
	"testing"

	"ImageLabelViewer/internal/entity"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []entity.Label
		wantErr  bool
	}{
		{
			name:     "plain array",
			response: `[{"text":"Cat","confidence":0.91,"entity_id":"/m/01yrx"}]`,
			want:     []entity.Label{{Text: "Cat", Confidence: 0.91, EntityID: "/m/01yrx"}},
		},
		{
			name:     "fenced with prose",
			response: "Sure!\n```json\n[{\"text\":\"Dog\",\"confidence\":0.7,\"entity_id\":\"\"}]\n```",
			want:     []entity.Label{{Text: "Dog", Confidence: 0.7}},
		},
		{
			name:     "clamps confidence and skips blanks",
			response: `[{"text":"Sky","confidence":1.4},{"text":"  ","confidence":0.2},{"text":"Cloud","confidence":-1}]`,
			want: []entity.Label{
				{Text: "Sky", Confidence: 1},
				{Text: "Cloud", Confidence: 0},
			},
		},
		{
			name:     "empty array",
			response: `[]`,
			want:     []entity.Label{},
		},
		{
			name:     "no json",
			response: "I cannot see anything",
			wantErr:  true,
		},
		{
			name:     "broken json",
			response: `[{"text":}]`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabels(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseLabels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewFactoryRequiresKey(t *testing.T) {
	_, err := NewFactory(Config{})
	assert.Error(t, err)

	f, err := NewFactory(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", f.Name())
}
