package willing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longAgo = 1000.0

func neutralInput(score float64, stim Stimulus) Input {
	return Input{Score: score, LastReplyAt: 0, Now: longAgo, Stimulus: stim}
}

func TestCompute_MentionBonus(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{"below saturation", 0, 0.9},
		{"just below saturation", 0.99, 1.89},
		{"at saturation", 1.0, 1.05},
		{"high score", 2.5, 2.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(neutralInput(tt.score, Stimulus{IsMentioned: true}), DefaultTuning(), 0.5)
			assert.InDelta(t, tt.want, res.Trace.AfterMention, 1e-9)
		})
	}
}

func TestCompute_NoMentionNoBonus(t *testing.T) {
	res := Compute(neutralInput(0.3, Stimulus{}), DefaultTuning(), 0.5)
	assert.InDelta(t, 0.3, res.Trace.AfterMention, 1e-9)
}

func TestCompute_EmojiDampening(t *testing.T) {
	res := Compute(neutralInput(1.0, Stimulus{IsEmoji: true}), DefaultTuning(), 0.5)
	assert.InDelta(t, 0.1, res.Trace.AfterEmoji, 1e-9)
}

func TestCompute_EmojiAppliesAfterMention(t *testing.T) {
	res := Compute(neutralInput(0, Stimulus{IsMentioned: true, IsEmoji: true}), DefaultTuning(), 0.5)
	assert.InDelta(t, 0.09, res.Trace.AfterEmoji, 1e-9)
}

func TestCompute_Interest(t *testing.T) {
	tuning := DefaultTuning()

	res := Compute(neutralInput(0, Stimulus{InterestRate: 0.4}), tuning, 0.5)
	assert.InDelta(t, 0, res.Trace.AfterInterest, 1e-9, "baseline interest adds nothing")

	res = Compute(neutralInput(0, Stimulus{InterestRate: 1.0}), tuning, 0.5)
	assert.InDelta(t, 0.6, res.Trace.AfterInterest, 1e-9)

	tuning.InterestAmplifier = 2
	res = Compute(neutralInput(0, Stimulus{InterestRate: 0.3}), tuning, 0.5)
	assert.InDelta(t, 0.2, res.Trace.AfterInterest, 1e-9)
}

func TestCompute_WillingnessAmplifier(t *testing.T) {
	tuning := DefaultTuning()
	tuning.WillingnessAmplifier = 1.5

	res := Compute(neutralInput(0, Stimulus{IsMentioned: true}), tuning, 0.5)
	assert.InDelta(t, 1.35, res.Trace.AfterAmplify, 1e-9)
}

func TestRateLimitFactor(t *testing.T) {
	assert.InDelta(t, 0.5, RateLimitFactor(10, false), 1e-12)
	assert.InDelta(t, 0.5, RateLimitFactor(40, true), 1e-12)
	assert.InDelta(t, 1.0, RateLimitFactor(longAgo, false), 1e-2)

	prev := RateLimitFactor(0, false)
	for x := 1.0; x <= 120; x++ {
		cur := RateLimitFactor(x, false)
		assert.Greater(t, cur, prev, "factor must grow with elapsed time (x=%v)", x)
		prev = cur
	}
}

func TestRateLimitFactor_ThrottledIsStricter(t *testing.T) {
	for x := -10.0; x < 40; x += 0.5 {
		normal := RateLimitFactor(x, false)
		throttled := RateLimitFactor(x, true)
		assert.LessOrEqual(t, throttled, normal, "x=%v", x)
		assert.Greater(t, throttled, 0.0)
		assert.Less(t, normal, 1.0)
	}
}

func TestReplyProbability(t *testing.T) {
	assert.Equal(t, 0.0, ReplyProbability(0))
	assert.Equal(t, 0.0, ReplyProbability(0.45))
	assert.InDelta(t, 0.9, ReplyProbability(0.9), 1e-9)
	assert.InDelta(t, 5.1, ReplyProbability(3), 1e-9, "unclamped")
}

func TestCompute_DownFrequencyGroup(t *testing.T) {
	tuning := DefaultTuning()
	tuning.DownFrequencyGroups = NewGroupSet("noisy")
	tuning.DownFrequencyRate = 3

	in := Input{Score: 0.6, LastReplyAt: 0, Now: longAgo, Stimulus: Stimulus{GroupID: "noisy"}}
	throttled := Compute(in, tuning, 0.99)

	in.Stimulus.GroupID = "quiet"
	normal := Compute(in, tuning, 0.99)

	require.Greater(t, normal.Probability, 0.0)
	assert.InDelta(t, normal.Probability/3, throttled.Probability, 1e-3)
	assert.Less(t, throttled.RateLimitFactor, normal.RateLimitFactor)
}

func TestCompute_ProbabilityClamped(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		tuning := Tuning{
			InterestAmplifier:    0.1 + r.Float64()*5,
			WillingnessAmplifier: 0.1 + r.Float64()*5,
			DownFrequencyGroups:  NewGroupSet("g"),
			DownFrequencyRate:    0.05 + r.Float64()*5,
		}
		stim := Stimulus{
			IsMentioned:  r.Intn(2) == 0,
			IsEmoji:      r.Intn(4) == 0,
			InterestRate: r.Float64() * 3,
		}
		if r.Intn(2) == 0 {
			stim.GroupID = "g"
		}
		in := Input{
			Score:       r.Float64() * MaxScore,
			LastReplyAt: r.Float64() * 100,
			Now:         r.Float64() * 200,
			Stimulus:    stim,
		}

		draw := r.Float64()
		res := Compute(in, tuning, draw)
		require.GreaterOrEqual(t, res.Probability, 0.0)
		require.LessOrEqual(t, res.Probability, 1.0)
		require.GreaterOrEqual(t, res.Score, MinScore)
		require.LessOrEqual(t, res.Score, MaxScore)
		require.Equal(t, draw < res.Probability, res.WillReply)
	}
}

func TestCompute_NonFiniteStaysBounded(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		now   float64
	}{
		{"nan score", math.NaN(), longAgo},
		{"nan clock", 0.5, math.NaN()},
		{"infinite score", math.Inf(1), longAgo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Score: tt.score, Now: tt.now, Stimulus: Stimulus{IsMentioned: true}}
			res := Compute(in, DefaultTuning(), 0.5)
			assert.False(t, math.IsNaN(res.Probability))
			assert.False(t, math.IsNaN(res.Score))
			assert.GreaterOrEqual(t, res.Probability, 0.0)
			assert.LessOrEqual(t, res.Probability, 1.0)
			assert.GreaterOrEqual(t, res.Score, MinScore)
			assert.LessOrEqual(t, res.Score, MaxScore)
		})
	}
}

func TestTuning_ValidateRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tuning)
		field  string
	}{
		{"nan rate", func(tu *Tuning) { tu.DownFrequencyRate = math.NaN() }, "down frequency rate"},
		{"inf rate", func(tu *Tuning) { tu.DownFrequencyRate = math.Inf(1) }, "down frequency rate"},
		{"nan interest amplifier", func(tu *Tuning) { tu.InterestAmplifier = math.NaN() }, "interest amplifier"},
		{"inf interest amplifier", func(tu *Tuning) { tu.InterestAmplifier = math.Inf(1) }, "interest amplifier"},
		{"nan willingness amplifier", func(tu *Tuning) { tu.WillingnessAmplifier = math.NaN() }, "willingness amplifier"},
		{"inf willingness amplifier", func(tu *Tuning) { tu.WillingnessAmplifier = math.Inf(1) }, "willingness amplifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuning := DefaultTuning()
			tt.mutate(&tuning)
			err := tuning.Validate()
			require.ErrorIs(t, err, ErrInvalidTuning)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	assert.ErrorIs(t, Stimulus{InterestRate: math.Inf(1)}.Validate(), ErrInvalidStimulus)
	assert.ErrorIs(t, Stimulus{InterestRate: math.NaN()}.Validate(), ErrInvalidStimulus)
}

func TestCompute_ScoreCappedAtMax(t *testing.T) {
	tuning := DefaultTuning()
	tuning.WillingnessAmplifier = 10

	res := Compute(neutralInput(2.9, Stimulus{IsMentioned: true, InterestRate: 2}), tuning, 0.5)
	assert.Equal(t, MaxScore, res.Score)
	assert.Equal(t, 1.0, res.Probability)
}

func TestCompute_DrawDecidesReply(t *testing.T) {
	in := neutralInput(0, Stimulus{IsMentioned: true})

	res := Compute(in, DefaultTuning(), 0)
	assert.True(t, res.WillReply)

	res = Compute(in, DefaultTuning(), math.Nextafter(1, 0))
	assert.False(t, res.WillReply)

	zero := Compute(neutralInput(0, Stimulus{}), DefaultTuning(), 0)
	assert.Equal(t, 0.0, zero.Probability)
	assert.False(t, zero.WillReply, "a zero probability never replies")
}

func TestCompute_EndToEndMention(t *testing.T) {
	res := Compute(neutralInput(0, Stimulus{IsMentioned: true}), DefaultTuning(), 0.5)

	assert.InDelta(t, 1.0, res.RateLimitFactor, 1e-2)
	assert.Greater(t, res.Probability, 0.0)
	assert.InDelta(t, 0.9, res.Score, 1e-2)
}

func TestCompute_RecentReplySuppresses(t *testing.T) {
	in := Input{Score: 0, LastReplyAt: 100, Now: 100, Stimulus: Stimulus{IsMentioned: true}}
	res := Compute(in, DefaultTuning(), 0.5)

	assert.Less(t, res.RateLimitFactor, 0.1)
	assert.Equal(t, 0.0, res.Probability)
}
