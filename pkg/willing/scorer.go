package willing

import "math"

// Scoring constants.
const (
	MentionBonus         = 0.9
	RepeatedMentionBonus = 0.05
	MentionSaturation    = 1.0
	EmojiDampening       = 0.1
	InterestBaseline     = 0.4
	ProbabilityDeadZone  = 0.45
	ProbabilitySlope     = 2.0

	rateLimitCenter         = 10.0
	rateLimitCenterThrottle = 40.0
	rateLimitSlope          = 3.0
)

// Input is the state a single evaluation starts from.
type Input struct {
	Score       float64
	LastReplyAt float64
	Now         float64
	Stimulus    Stimulus
}

// Trace holds the intermediate score after each scoring step.
type Trace struct {
	AfterMention  float64 `json:"after_mention"`
	AfterEmoji    float64 `json:"after_emoji"`
	AfterInterest float64 `json:"after_interest"`
	AfterAmplify  float64 `json:"after_amplify"`
	AfterLimit    float64 `json:"after_limit"`
}

// Result is the output of Compute.
type Result struct {
	Score           float64 `json:"score"`
	Probability     float64 `json:"probability"`
	WillReply       bool    `json:"will_reply"`
	RateLimitFactor float64 `json:"rate_limit_factor"`
	Trace           Trace   `json:"trace"`
}

// Compute runs the scoring algorithm. It has no side effects; draw is a
// uniform value in [0, 1) that decides WillReply. The order of the steps
// matters because the later ones multiply.
func Compute(in Input, t Tuning, draw float64) Result {
	var tr Trace
	score := in.Score
	stim := in.Stimulus

	if stim.IsMentioned {
		if score < MentionSaturation {
			score += MentionBonus
		} else {
			score += RepeatedMentionBonus
		}
	}
	tr.AfterMention = score

	if stim.IsEmoji {
		score *= EmojiDampening
	}
	tr.AfterEmoji = score

	interest := stim.InterestRate * t.InterestAmplifier
	if interest > InterestBaseline {
		score += interest - InterestBaseline
	}
	tr.AfterInterest = score

	score *= t.WillingnessAmplifier
	tr.AfterAmplify = score

	throttled := t.IsDownFrequency(stim.GroupID)
	factor := RateLimitFactor(in.Now-in.LastReplyAt, throttled)
	score *= factor
	tr.AfterLimit = score

	probability := ReplyProbability(score)
	if throttled {
		probability /= t.DownFrequencyRate
	}
	if math.IsNaN(probability) {
		probability = 0
	}
	probability = min(max(probability, 0), 1)

	return Result{
		Score:           clampScore(score),
		Probability:     probability,
		WillReply:       draw < probability,
		RateLimitFactor: factor,
		Trace:           tr,
	}
}

// RateLimitFactor returns atan((elapsed-center)/slope)/π + 0.5, a smooth curve
// in (0, 1) that suppresses willingness right after a reply. Throttled groups
// use a later center and stay suppressed longer.
func RateLimitFactor(elapsed float64, throttled bool) float64 {
	center := rateLimitCenter
	if throttled {
		center = rateLimitCenterThrottle
	}
	return math.Atan((elapsed-center)/rateLimitSlope)/math.Pi + 0.5
}

// ReplyProbability maps a score to max((score-0.45)*2, 0). It is not clamped.
func ReplyProbability(score float64) float64 {
	return max((score-ProbabilityDeadZone)*ProbabilitySlope, 0)
}
