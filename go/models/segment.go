package models

import "fmt"

// Segment is a half-open address range [Start, End).
type Segment struct {
	Start, End uint64
}

func (s *Segment) Size() uint64 {
	return s.End - s.Start
}

func (s *Segment) Overlaps(o *Segment) bool {
	return (s.Start >= o.Start && s.Start < o.End) || (o.Start >= s.Start && o.Start < s.End)
}

// Contains reports whether o lies entirely within s. Empty ranges are
// contained if they start inside s or at its end.
func (s *Segment) Contains(o *Segment) bool {
	return s.Start <= o.Start && o.End <= s.End && o.Start <= o.End
}

func (s *Segment) Merge(o *Segment) {
	if s.Start > o.Start {
		s.Start = o.Start
	}
	if s.End < o.End {
		s.End = o.End
	}
}

func (s Segment) String() string {
	return fmt.Sprintf("%#x-%#x", s.Start, s.End)
}
