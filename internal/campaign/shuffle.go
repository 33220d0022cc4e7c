package campaign

import (
	"math/rand/v2"
)

// Shuffle applies the RANDOM/GROUP policy to cases and returns a new slice.
// Every maximal run of random entries is shuffled; members of a group stay
// adjacent and in their original order, ungrouped random entries move
// individually. Non-random entries keep their position.
func Shuffle(cases []TestCaseConf, rng *rand.Rand) []TestCaseConf {
	out := make([]TestCaseConf, 0, len(cases))
	for i := 0; i < len(cases); {
		if !cases[i].IsRandom {
			out = append(out, cases[i])
			i++
			continue
		}
		j := i
		for j < len(cases) && cases[j].IsRandom {
			j++
		}
		out = append(out, shuffleRun(cases[i:j], rng)...)
		i = j
	}
	return out
}

func shuffleRun(run []TestCaseConf, rng *rand.Rand) []TestCaseConf {
	var units [][]TestCaseConf
	for i := 0; i < len(run); {
		j := i + 1
		if g := run[i].GroupID; g != 0 {
			for j < len(run) && run[j].GroupID == g {
				j++
			}
		}
		units = append(units, run[i:j])
		i = j
	}
	rng.Shuffle(len(units), func(a, b int) { units[a], units[b] = units[b], units[a] })

	out := make([]TestCaseConf, 0, len(run))
	for _, u := range units {
		out = append(out, u...)
	}
	return out
}

// MarkRandom returns a copy of cases with every entry flagged random. It
// implements the engine random mode: entries that already belong to a
// group keep it, every other entry is shuffled on its own.
func MarkRandom(cases []TestCaseConf) []TestCaseConf {
	out := make([]TestCaseConf, len(cases))
	for i, tc := range cases {
		tc.IsRandom = true
		out[i] = tc
	}
	return out
}
