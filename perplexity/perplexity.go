// Package perplexity estimates how well a sliding window of text fits a
// language profile built from character n-gram frequencies. Text far from
// any known profile (adversarial suffixes, base64 payloads masquerading as
// prose) scores a high perplexity even when its Shannon entropy alone
// would not look unusual.
package perplexity

import "math"

// DefaultOrder is the default n-gram order.
const DefaultOrder = 3

// DefaultWindow is the default sliding-window size, in runes.
const DefaultWindow = 50

// DefaultThreshold is the default anomaly threshold for MaxWindowPerplexity.
const DefaultThreshold = 4.5

// laplaceAlpha is the additive smoothing constant applied to unseen
// n-grams so that perplexity never diverges to infinity.
const laplaceAlpha = 0.5

// Profile holds character n-gram statistics for one language, plus a set
// of its most frequent n-grams used to compute a familiarity boost.
type Profile struct {
	Name         string
	Order        int
	counts       map[string]int
	total        int
	alphabetSize int
	commonNgrams map[string]struct{}
}

// BuildProfile constructs a Profile from a representative sample of text
// in the target language. order <= 0 defaults to DefaultOrder.
func BuildProfile(name, sample string, order int) Profile {
	if order <= 0 {
		order = DefaultOrder
	}
	p := Profile{
		Name:         name,
		Order:        order,
		counts:       make(map[string]int),
		commonNgrams: make(map[string]struct{}),
	}
	runes := []rune(sample)
	alphabet := make(map[rune]struct{})
	for _, r := range runes {
		alphabet[r] = struct{}{}
	}
	p.alphabetSize = len(alphabet)
	if p.alphabetSize == 0 {
		p.alphabetSize = 1
	}
	for i := 0; i+order <= len(runes); i++ {
		ng := string(runes[i : i+order])
		p.counts[ng]++
		p.total++
	}
	p.commonNgrams = topNgrams(p.counts, 200)
	return p
}

func topNgrams(counts map[string]int, n int) map[string]struct{} {
	type kv struct {
		k string
		v int
	}
	list := make([]kv, 0, len(counts))
	for k, v := range counts {
		list = append(list, kv{k, v})
	}
	// Simple selection of the top n by count; n-gram tables built from a
	// fixed embedded sample are small enough that an O(n^2) selection is
	// fine and keeps this dependency-free.
	out := make(map[string]struct{}, n)
	for len(out) < n && len(list) > 0 {
		maxIdx := 0
		for i := range list {
			if list[i].v > list[maxIdx].v {
				maxIdx = i
			}
		}
		out[list[maxIdx].k] = struct{}{}
		list = append(list[:maxIdx], list[maxIdx+1:]...)
	}
	return out
}

// negLogProb computes the Laplace-smoothed negative log probability of a
// single n-gram under the profile.
func (p Profile) negLogProb(ngram string) float64 {
	count := float64(p.counts[ngram])
	denom := float64(p.total) + laplaceAlpha*float64(p.alphabetSize)
	prob := (count + laplaceAlpha) / denom
	return -math.Log2(prob)
}

// familiarity returns a factor in (0, 1] that scales perplexity down as
// more of the window's n-grams are found in the profile's common set.
func (p Profile) familiarity(ngrams []string) float64 {
	if len(ngrams) == 0 {
		return 1
	}
	hits := 0
	for _, ng := range ngrams {
		if _, ok := p.commonNgrams[ng]; ok {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(ngrams))
	// Map [0,1] hit ratio onto [1, 0.4]: fully familiar text gets its
	// perplexity attenuated, fully unfamiliar text is left unscaled.
	return 1 - 0.6*ratio
}

// windowPerplexity computes the n-gram perplexity of a single window
// against the best-fitting (lowest-perplexity) profile.
func windowPerplexity(window []rune, order int, profiles []Profile) float64 {
	if len(window) < order {
		return 0
	}
	ngrams := make([]string, 0, len(window)-order+1)
	for i := 0; i+order <= len(window); i++ {
		ngrams = append(ngrams, string(window[i:i+order]))
	}
	best := math.Inf(1)
	for _, p := range profiles {
		sum := 0.0
		for _, ng := range ngrams {
			sum += p.negLogProb(ng)
		}
		mean := sum / float64(len(ngrams))
		scored := mean * p.familiarity(ngrams)
		if scored < best {
			best = scored
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// Result is the Perplexity Analyzer's output.
type Result struct {
	Perplexity          float64
	Anomalous           bool
	WindowScores        []float64
	MaxWindowPerplexity float64
}

// Analyze scores text's fit against profiles using sliding windows of the
// given size (default DefaultWindow) and n-gram order (default
// DefaultOrder). Anomalous is true when MaxWindowPerplexity >= threshold
// (default DefaultThreshold).
func Analyze(text string, profiles []Profile, order, window int, threshold float64) Result {
	if order <= 0 {
		order = DefaultOrder
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(profiles) == 0 {
		profiles = []Profile{EnglishProfile()}
	}

	runes := []rune(text)
	if len(runes) < order {
		return Result{}
	}

	var scores []float64
	if len(runes) <= window {
		scores = []float64{windowPerplexity(runes, order, profiles)}
	} else {
		for i := 0; i+window <= len(runes); i++ {
			scores = append(scores, windowPerplexity(runes[i:i+window], order, profiles))
		}
	}

	max := 0.0
	sum := 0.0
	for _, s := range scores {
		sum += s
		if s > max {
			max = s
		}
	}
	mean := sum / float64(len(scores))

	return Result{
		Perplexity:          mean,
		WindowScores:        scores,
		MaxWindowPerplexity: max,
		Anomalous:           max >= threshold,
	}
}
