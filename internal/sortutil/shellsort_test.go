package sortutil

import (
	"math/rand"
	"testing"
)

func TestSortPermutationInvariant(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 7, 8, 9, 100, 1000, 10000} {
		src := make([]int, n)
		for i := range src {
			src[i] = rand.Intn(1 << 20)
		}
		want := append([]int(nil), src...)
		got := append([]int(nil), src...)

		Sort(n,
			func(i, j int) int { return got[i] - got[j] },
			func(i, j int) { got[i], got[j] = got[j], got[i] },
		)

		if !IsSorted(n, func(i, j int) int { return got[i] - got[j] }) {
			t.Fatalf("n=%d: result not sorted: %v", n, got)
		}
		if !samePermutation(want, got) {
			t.Fatalf("n=%d: result is not a permutation of the input", n)
		}
	}
}

func samePermutation(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[int]int, len(a))
	for _, v := range a {
		count[v]++
	}
	for _, v := range b {
		count[v]--
	}
	for _, c := range count {
		if c != 0 {
			return false
		}
	}
	return true
}

func TestSortAlreadySorted(t *testing.T) {
	got := []int{1, 2, 3, 4, 5}
	Sort(len(got),
		func(i, j int) int { return got[i] - got[j] },
		func(i, j int) { got[i], got[j] = got[j], got[i] },
	)
	want := []int{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSortReverseSorted(t *testing.T) {
	got := []int{5, 4, 3, 2, 1}
	Sort(len(got),
		func(i, j int) int { return got[i] - got[j] },
		func(i, j int) { got[i], got[j] = got[j], got[i] },
	)
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("got %v, not sorted", got)
		}
	}
}
