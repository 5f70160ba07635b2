package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

func stepNames(steps []script.NightStep) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name)
	}
	return out
}

func TestNightSteps_FilteredByLivingCharacters(t *testing.T) {
	g := newTestGame(t, "Chef", "Imp")
	seatAll(t, g, map[string]string{"Chef_Player": "Chef", "Imp_Player": "Imp"})

	assert.Contains(t, stepNames(g.FirstNightSteps()), "Chef")
	assert.Contains(t, stepNames(g.OtherNightSteps()), "Imp")
	assert.NotContains(t, stepNames(g.FirstNightSteps()), "Poisoner")

	_, err := g.SetAlive("Imp_Player", false)
	require.NoError(t, err)
	assert.NotContains(t, stepNames(g.OtherNightSteps()), "Imp")
}

func TestNightSteps_EmptyGameShowsAlwaysSteps(t *testing.T) {
	g := newTestGame(t)

	assert.Equal(t, []string{"Dusk", "Minion Info", "Demon Info", "Dawn"}, stepNames(g.FirstNightSteps()))
	assert.Equal(t, []string{"Dusk", "Dawn"}, stepNames(g.OtherNightSteps()))
	assert.Equal(t, stepNames(g.FirstNightSteps()), stepNames(g.NightSteps()))

	g.SetFirstNight(false)
	assert.Equal(t, stepNames(g.OtherNightSteps()), stepNames(g.NightSteps()))
}

func TestSetNightStep(t *testing.T) {
	cases := []struct {
		name       string
		firstNight bool
		step       string
		want       string
		wantErr    bool
	}{
		{name: "first night step", firstNight: true, step: "Poisoner", want: "Poisoner"},
		{name: "case folded", firstNight: true, step: "minion info", want: "Minion Info"},
		{name: "other night only step on first night", firstNight: true, step: "Monk", wantErr: true},
		{name: "other night step", firstNight: false, step: "Monk", want: "Monk"},
		{name: "blank", firstNight: true, step: " ", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGame(t)
			g.SetFirstNight(tc.firstNight)

			err := g.SetNightStep(tc.step)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				assert.Equal(t, DefaultNightStep, g.CurrentNightStep)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, g.CurrentNightStep)
		})
	}
}

func TestSetFirstNight_ResetsStep(t *testing.T) {
	g := newTestGame(t)
	require.NoError(t, g.SetNightStep("Spy"))

	g.SetFirstNight(false)
	assert.False(t, g.IsFirstNight)
	assert.Equal(t, "Dusk", g.CurrentNightStep)

	require.NoError(t, g.SetNightStep("Dawn"))
	g.SetFirstNight(false)
	assert.Equal(t, "Dusk", g.CurrentNightStep)
}
