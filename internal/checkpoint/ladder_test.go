package checkpoint

import "testing"

func entry(epoch int) Entry {
	return Entry{Epoch: epoch}
}

func TestNewLadderValidation(t *testing.T) {
	if _, err := NewLadder([3]int{0, 1, 1}); err == nil {
		t.Fatalf("zero capacity accepted")
	}
}

func TestPushCascade(t *testing.T) {
	l, err := NewLadder([3]int{2, 2, 1})
	if err != nil {
		t.Fatalf("NewLadder: %v", err)
	}
	for epoch := 1; epoch <= 7; epoch++ {
		l.Push(entry(epoch))
	}
	// Pushes 1..7 through caps (2,2,1): rung0 keeps the two newest,
	// rung1 the two before those, rung2 one more; the rest dropped.
	if got := l.RungLens(); got != [3]int{2, 2, 1} {
		t.Fatalf("rung occupancy got=%v want=[2 2 1]", got)
	}
	if l.Len() != 5 {
		t.Fatalf("total got=%d want=5", l.Len())
	}
}

func TestPopOrderNewestFirstAcrossRungs(t *testing.T) {
	l, _ := NewLadder([3]int{2, 2, 1})
	for epoch := 1; epoch <= 7; epoch++ {
		l.Push(entry(epoch))
	}
	// Expected layout: rung0=[6 7], rung1=[4 5], rung2=[3].
	want := []int{7, 6, 5, 4, 3}
	for i, w := range want {
		e, ok := l.Pop()
		if !ok {
			t.Fatalf("pop %d: ladder empty early", i)
		}
		if e.Epoch != w {
			t.Fatalf("pop %d epoch got=%d want=%d", i, e.Epoch, w)
		}
	}
	if _, ok := l.Pop(); ok {
		t.Fatalf("pop on empty ladder should fail")
	}
}

func TestShouldRevert(t *testing.T) {
	cases := []struct {
		name    string
		history []float64
		window  int
		drop    float64
		want    bool
	}{
		{"short history", []float64{0.9}, 1, 0.1, false},
		{"no drop", []float64{0.5, 0.6, 0.7}, 1, 0.1, false},
		{"exact drop", []float64{0.8, 0.7}, 1, 0.1, true},
		{"drop across window", []float64{0.9, 0.85, 0.6}, 2, 0.25, true},
		{"disabled window", []float64{0.9, 0.1}, 0, 0.1, false},
		{"disabled drop", []float64{0.9, 0.1}, 1, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRevert(tc.history, tc.window, tc.drop); got != tc.want {
				t.Fatalf("ShouldRevert(%v,%d,%v) got=%v want=%v",
					tc.history, tc.window, tc.drop, got, tc.want)
			}
		})
	}
}
