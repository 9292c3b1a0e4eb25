package ratchet

import "math"

// Seeker finds the latest revision reachable from a known one when only an
// existence oracle is available. It tests exponentially growing offsets
// until one misses, then binary-searches the gap. Revisions are assumed
// to exist contiguously from the start.
//
//	s := ratchet.NewSeeker(known)
//	for !s.Done() {
//		s.Step(exists(s.Current()))
//	}
//	latest := s.Result()
type Seeker struct {
	base Ratchet

	found   uint64 // offset of the latest revision known to exist
	missing uint64 // offset of the earliest revision known not to exist
	bounded bool   // missing is valid
	next    uint64
	done    bool
	nextRev Ratchet
}

// NewSeeker starts a search from start, which must exist.
func NewSeeker(start Ratchet) *Seeker {
	s := &Seeker{base: start, next: 1}
	s.setNext(1)
	return s
}

// Current is the revision to test next.
func (s *Seeker) Current() Ratchet { return s.nextRev }

func (s *Seeker) Done() bool { return s.done }

// Step records whether Current exists and moves to the next candidate. It
// returns true once the search has converged.
func (s *Seeker) Step(exists bool) bool {
	if s.done {
		return true
	}
	if exists {
		s.found = s.next
	} else {
		s.missing = s.next
		s.bounded = true
	}

	var next uint64
	if !s.bounded {
		if s.found > math.MaxUint64/2 {
			s.missing, s.bounded = math.MaxUint64, true
			next = s.found + (s.missing-s.found)/2
		} else {
			next = s.found * 2
		}
	} else {
		if s.missing-s.found <= 1 {
			s.done = true
			return true
		}
		next = s.found + (s.missing-s.found)/2
	}
	if !s.setNext(next) {
		s.done = true
	}
	return s.done
}

// Result is the latest revision found so far.
func (s *Seeker) Result() Ratchet {
	r, err := s.base.Jump(s.found)
	if err != nil {
		return s.base
	}
	return r
}

// Offset is the number of advances from the start to Result.
func (s *Seeker) Offset() uint64 { return s.found }

func (s *Seeker) setNext(off uint64) bool {
	r, err := s.base.Jump(off)
	if err != nil {
		return false
	}
	s.next = off
	s.nextRev = r
	return true
}
