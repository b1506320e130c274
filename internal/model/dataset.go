package model

import "sort"

// Sample is one labeled example of a prepared dataset.
type Sample struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}

type Dataset []Sample

// Labels returns the sorted set of distinct labels.
func (d Dataset) Labels() []int {
	seen := make(map[int]bool)
	labels := []int{}
	for _, s := range d {
		if !seen[s.Label] {
			seen[s.Label] = true
			labels = append(labels, s.Label)
		}
	}
	sort.Ints(labels)
	return labels
}

// NumFeatures returns the feature width of the first sample, or 0 if empty.
func (d Dataset) NumFeatures() int {
	if len(d) == 0 {
		return 0
	}
	return len(d[0].Features)
}

// NumClasses returns max label + 1, or 0 if empty.
func (d Dataset) NumClasses() int {
	maxLabel := -1
	for _, s := range d {
		if s.Label > maxLabel {
			maxLabel = s.Label
		}
	}
	return maxLabel + 1
}

// Shard is the disjoint subset of a dataset assigned to one client.
// Indices refer to positions in the partitioned dataset.
type Shard struct {
	ClientID int
	Indices  []int
	Samples  Dataset
}

func (s *Shard) Len() int {
	return len(s.Samples)
}

// LabelCounts returns the number of samples per label.
func (s *Shard) LabelCounts() map[int]int64 {
	counts := make(map[int]int64)
	for _, sample := range s.Samples {
		counts[sample.Label]++
	}
	return counts
}
