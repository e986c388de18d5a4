package xp

import (
	"math"
	"sort"
)

// levelThresholds holds the cumulative XP needed to reach levels 1..len.
var levelThresholds = []int{0, 100, 250, 450, 700, 1000, 1350, 1750, 2200, 2700}

// levelStep is k in threshold[n] = threshold[n-1] + k*n past the table.
const levelStep = 50

// MaxLevel bounds the generated part of the curve.
const MaxLevel = 100000

// LevelInfo is the level view over a cumulative XP total.
type LevelInfo struct {
	Level         int
	XPIntoLevel   int
	XPToNextLevel int
}

// Threshold returns the cumulative XP at which level n begins.
func Threshold(n int) int {
	if n <= 1 {
		return 0
	}
	if n > MaxLevel {
		n = MaxLevel
	}
	last := len(levelThresholds)
	if n <= last {
		return levelThresholds[n-1]
	}
	// sum of k*i for i in (last, n]
	return levelThresholds[last-1] + levelStep*(n*(n+1)-last*(last+1))/2
}

// LevelFromTotalXP finds the greatest level whose threshold is <= totalXP.
func LevelFromTotalXP(totalXP int) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	level := levelFor(totalXP)
	info := LevelInfo{
		Level:       level,
		XPIntoLevel: totalXP - Threshold(level),
	}
	if level < MaxLevel {
		info.XPToNextLevel = Threshold(level+1) - totalXP
	}
	return info
}

func levelFor(totalXP int) int {
	last := len(levelThresholds)
	if totalXP < Threshold(last+1) {
		// first index whose threshold exceeds totalXP
		return sort.Search(last, func(i int) bool { return levelThresholds[i] > totalXP })
	}
	if totalXP >= Threshold(MaxLevel) {
		return MaxLevel
	}
	// Invert the quadratic tail, then settle rounding error.
	c := float64(levelThresholds[last-1]) - levelStep*float64(last*(last+1))/2
	a := float64(levelStep) / 2
	n := int((-a + math.Sqrt(a*a+4*a*(float64(totalXP)-c))) / (2 * a))
	if n < last {
		n = last
	}
	for n < MaxLevel && Threshold(n+1) <= totalXP {
		n++
	}
	for n > last && Threshold(n) > totalXP {
		n--
	}
	return n
}
