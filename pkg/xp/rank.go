package xp

// Rank is a coarse title derived from level.
type Rank string

const (
	RankNovice      Rank = "Novice"
	RankApprentice  Rank = "Apprentice"
	RankAdept       Rank = "Adept"
	RankExpert      Rank = "Expert"
	RankMaster      Rank = "Master"
	RankGrandmaster Rank = "Grandmaster"
	RankLegend      Rank = "Legend"
)

// ranks is sorted by minimum level, descending.
var ranks = []struct {
	rank     Rank
	minLevel int
}{
	{RankLegend, 75},
	{RankGrandmaster, 50},
	{RankMaster, 35},
	{RankExpert, 20},
	{RankAdept, 10},
	{RankApprentice, 5},
	{RankNovice, 1},
}

// RankFromLevel returns the first rank whose minimum level is <= level.
func RankFromLevel(level int) Rank {
	for _, r := range ranks {
		if level >= r.minLevel {
			return r.rank
		}
	}
	return RankNovice
}
