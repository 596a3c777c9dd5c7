// Package dataset turns labeled segments into an image-classification
// dataset laid out as <root>/train/<label>/ and <root>/val/<label>/.
package dataset

import (
	"math/rand/v2"
	"slices"
)

// TrainFraction is the share of each label group assigned to training.
const TrainFraction = 0.8

// Item is one labeled training image.
type Item struct {
	SegmentID uint
	Label     string
	ImagePath string
}

// Split is the result of Partition.
type Split struct {
	Train []Item
	Val   []Item
	// ValFromTrain is set when no group produced validation items and the
	// validation set is a copy of the training set.
	ValFromTrain bool
}

// Partition groups items by label, shuffles each group with rng and sends
// the first floor(0.8*n) items to training and the rest to validation.
// Groups with fewer than two items go entirely to training. When no
// validation item results, validation becomes a copy of training.
// Groups are processed in label-name order so a seeded rng is reproducible.
func Partition(items []Item, rng *rand.Rand) Split {
	groups := make(map[string][]Item)
	for _, it := range items {
		groups[it.Label] = append(groups[it.Label], it)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)

	var split Split
	for _, name := range names {
		group := slices.Clone(groups[name])
		if len(group) < 2 {
			split.Train = append(split.Train, group...)
			continue
		}
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(TrainFraction * float64(len(group)))
		split.Train = append(split.Train, group[:cut]...)
		split.Val = append(split.Val, group[cut:]...)
	}

	if len(split.Val) == 0 && len(split.Train) > 0 {
		split.Val = slices.Clone(split.Train)
		split.ValFromTrain = true
	}
	return split
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
