package timeline

import (
	"strings"
	"testing"
)

func TestScheduleAddValidation(t *testing.T) {
	s := NewSchedule()
	if err := s.Add(-1, "S1", 1); err == nil {
		t.Fatalf("negative tick accepted")
	}
	if err := s.Add(0, "", 1); err == nil {
		t.Fatalf("empty sensor id accepted")
	}
}

func TestScheduleAdvanceAndLoop(t *testing.T) {
	s := NewSchedule()
	s.Add(0, "S1", 1.0)
	s.Add(2, "S2", 0.5)

	if got := s.Current(); len(got) != 1 || got[0].SensorID != "S1" {
		t.Fatalf("tick 0 events got=%v", got)
	}
	s.Advance()
	if got := s.Current(); len(got) != 0 {
		t.Fatalf("tick 1 should be empty, got=%v", got)
	}
	s.Advance()
	if got := s.Current(); len(got) != 1 || got[0].SensorID != "S2" {
		t.Fatalf("tick 2 events got=%v", got)
	}

	// Without loop the schedule runs dry.
	s.Advance()
	if got := s.Current(); len(got) != 0 {
		t.Fatalf("past max tick should be empty, got=%v", got)
	}

	s.Loop = true
	s.Reset()
	for i := 0; i <= s.MaxTick(); i++ {
		s.Advance()
	}
	if got := s.Current(); len(got) != 1 || got[0].SensorID != "S1" {
		t.Fatalf("loop wrap: got=%v want S1 event", got)
	}
}

func TestParse(t *testing.T) {
	text := `
# stimulus
LOOP true
0 S1 3.0
0 S2 0.6
5 S1 -1.5
`
	s, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !s.Loop {
		t.Fatalf("LOOP true not honored")
	}
	if s.MaxTick() != 5 {
		t.Fatalf("max tick got=%d want=5", s.MaxTick())
	}
	if got := s.Current(); len(got) != 2 {
		t.Fatalf("tick 0 events got=%v", got)
	}
	if ticks := s.Ticks(); len(ticks) != 2 || ticks[0] != 0 || ticks[1] != 5 {
		t.Fatalf("Ticks got=%v", ticks)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"bad arity", "0 S1\n"},
		{"bad tick", "x S1 1.0\n"},
		{"bad amplitude", "0 S1 abc\n"},
		{"bad loop", "LOOP maybe\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.text)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestFuncTimeline(t *testing.T) {
	f := &Func{
		At: func(tick int) []Event {
			if tick%2 == 0 {
				return []Event{{SensorID: "S1", Amplitude: 1}}
			}
			return nil
		},
		Last: 9,
	}
	if got := f.Current(); len(got) != 1 {
		t.Fatalf("tick 0 got=%v", got)
	}
	f.Advance()
	if got := f.Current(); len(got) != 0 {
		t.Fatalf("tick 1 got=%v", got)
	}
	f.Reset()
	if got := f.Current(); len(got) != 1 {
		t.Fatalf("after reset got=%v", got)
	}
}
