package session

// ScoringPolicy is the tagged scoring variant a session runs under, selected
// once at creation time by the game type.
type ScoringPolicy string

const (
	// PolicyDiscrete computes the score once at finalization from duration,
	// moves, and board size (matching-pair).
	PolicyDiscrete ScoringPolicy = "discrete"
	// PolicyCombo accrues score per match, multiplied by the running combo
	// counter (pair-or-no-pair).
	PolicyCombo ScoringPolicy = "combo"
)

const (
	comboBaseScore = 100

	discretePairScore   = 1000
	discreteMovePenalty = 50
	discreteTimeDivisor = 100 // 1 point lost per 100ms elapsed
)

// discreteScore is the matching-pair finalization formula. It is monotone:
// fewer moves and shorter duration never score lower for the same board
// size, and the score never goes negative. A perfect game consumes exactly
// totalPairs moves, so only excess moves are penalized.
func discreteScore(durationMs int64, moves, totalPairs int) int {
	score := totalPairs*discretePairScore -
		(moves-totalPairs)*discreteMovePenalty -
		int(durationMs/discreteTimeDivisor)
	if score < 0 {
		score = 0
	}
	return score
}

// comboAward is the points granted for one successful match at the given
// post-increment combo count. The multiplier floors at 1 so the first match
// after a reset still pays the base score.
func comboAward(combo int) int {
	multiplier := combo
	if multiplier < 1 {
		multiplier = 1
	}
	return comboBaseScore * multiplier
}
