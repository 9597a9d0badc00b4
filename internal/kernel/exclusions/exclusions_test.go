package exclusions

import (
	"reflect"
	"sort"
	"testing"
)

func TestAllDifferentAndQueries(t *testing.T) {
	s := New(9)
	s.AddAllDifferent([]int{0, 1, 2})

	if !s.IsMutuallyExclusive(0, 1) {
		t.Fatal("expected 0,1 mutually exclusive")
	}
	if s.IsMutuallyExclusive(0, 3) {
		t.Fatal("expected 0,3 not mutually exclusive")
	}

	got := s.GetArray(0)
	sort.Ints(got)
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("GetArray(0) = %v, want [1 2]", got)
	}
}

func TestAreSameValueMergesExclusions(t *testing.T) {
	s := New(9)
	s.AddMutualExclusion(0, 1)
	s.AreSameValue(2, 0) // 2 is an alias of 0

	if !s.IsMutuallyExclusive(2, 1) {
		t.Fatal("expected alias 2 to inherit 0's exclusion with 1")
	}
}

func TestSealingPanicsOnWriteAfterRead(t *testing.T) {
	s := New(4)
	s.AddMutualExclusion(0, 1)
	_ = s.IsMutuallyExclusive(0, 1) // seals

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic writing after seal")
		}
	}()
	s.AddMutualExclusion(2, 3)
}

func TestGetListExclusionsIntersection(t *testing.T) {
	s := New(6)
	s.AddAllDifferent([]int{0, 1, 2})
	s.AddAllDifferent([]int{1, 3, 4})

	got := s.GetListExclusions([]int{0, 3})
	// 0's exclusions: {1,2}; 3's exclusions: {1,4}; intersection: {1}
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("GetListExclusions = %v, want [1]", got)
	}
}

func TestAreMutuallyExclusiveClique(t *testing.T) {
	s := New(6)
	s.AddAllDifferent([]int{0, 1, 2})
	if !s.AreMutuallyExclusive([]int{0, 1, 2}) {
		t.Fatal("expected clique over {0,1,2}")
	}
	if s.AreMutuallyExclusive([]int{0, 1, 3}) {
		t.Fatal("expected non-clique over {0,1,3}")
	}
}
