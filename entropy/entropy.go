// Package entropy computes Shannon entropy over text, using a sliding
// window to surface localized high-entropy spans (GCG-style adversarial
// suffixes, encoded payloads) that a whole-string average would dilute.
package entropy

import "math"

// DefaultThreshold is the default anomaly threshold for MaxWindow entropy.
const DefaultThreshold = 4.5

// DefaultWindow is the default sliding-window size, in runes.
const DefaultWindow = 50

// Result is the Entropy Analyzer's output for a single piece of text.
type Result struct {
	Mean      float64
	MaxWindow float64
	Anomalous bool
}

// Analyze computes the mean entropy of text and the maximum entropy of any
// window-sized substring. window <= 0 falls back to DefaultWindow.
// Anomalous is true when MaxWindow >= threshold.
func Analyze(text string, window int, threshold float64) Result {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	runes := []rune(text)
	if len(runes) < 2 {
		return Result{}
	}

	mean := ShannonEntropy(text)

	maxWindow := 0.0
	if len(runes) <= window {
		maxWindow = mean
	} else {
		for i := 0; i+window <= len(runes); i++ {
			e := ShannonEntropy(string(runes[i : i+window]))
			if e > maxWindow {
				maxWindow = e
			}
		}
	}

	return Result{
		Mean:      mean,
		MaxWindow: maxWindow,
		Anomalous: maxWindow >= threshold,
	}
}

// ShannonEntropy computes the Shannon entropy, in bits per character, of s
// based on rune frequency.
func ShannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	if total <= 1 {
		return 0
	}
	var entropy float64
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
