package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions samples into train and test sets, keeping the
// class proportions of the input in both. The test set holds
// ceil(testFraction * n) samples. Both sets keep input order.
func StratifiedSplit(samples []Sample, testFraction float64, rng *rand.Rand) (train, test []Sample, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0,1), got %v", testFraction)
	}
	var byClass [numClasses][]int
	for i, s := range samples {
		if s.Label != LabelControl && s.Label != LabelRelevant {
			return nil, nil, fmt.Errorf("sample %d has label %d, want 0 or 1", i, s.Label)
		}
		byClass[s.Label] = append(byClass[s.Label], i)
	}
	for k, idx := range byClass {
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d samples, stratified split needs at least 2", k, len(idx))
		}
	}

	n := len(samples)
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest > n-numClasses {
		return nil, nil, fmt.Errorf("test fraction %v leaves a class without training samples", testFraction)
	}

	// proportional allocation, remainder to the largest fractional parts
	var alloc [numClasses]int
	type frac struct {
		class int
		part  float64
	}
	var fracs []frac
	assigned := 0
	for k, idx := range byClass {
		exact := float64(nTest) * float64(len(idx)) / float64(n)
		alloc[k] = int(math.Floor(exact))
		assigned += alloc[k]
		fracs = append(fracs, frac{class: k, part: exact - math.Floor(exact)})
	}
	sort.SliceStable(fracs, func(i, j int) bool { return fracs[i].part > fracs[j].part })
	for i := 0; assigned < nTest; i++ {
		k := fracs[i%len(fracs)].class
		if alloc[k] < len(byClass[k])-1 {
			alloc[k]++
			assigned++
		}
	}

	inTest := make([]bool, n)
	for k, idx := range byClass {
		perm := rng.Perm(len(idx))
		for _, p := range perm[:alloc[k]] {
			inTest[idx[p]] = true
		}
	}
	for i, s := range samples {
		if inTest[i] {
			test = append(test, s)
		} else {
			train = append(train, s)
		}
	}
	return train, test, nil
}
