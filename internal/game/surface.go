package game

// CoverageEstimator is what a rendering surface implements to report how much
// of a card has been scratched.
type CoverageEstimator interface {
	Begin(x, y float64) float64
	Move(x, y float64) float64
	End()
	Coverage() float64
	Reset()
}

// ScratchSurface tracks scratching on one attached card and reports the
// threshold crossing at most once per attach.
type ScratchSurface struct {
	estimator CoverageEstimator
	threshold float64
	card      int
	attached  bool
	fired     bool
}

func NewScratchSurface(estimator CoverageEstimator) *ScratchSurface {
	return &ScratchSurface{estimator: estimator, threshold: REVEAL_THRESHOLD, card: -1}
}

// Attach points the surface at a freshly selected card.
func (s *ScratchSurface) Attach(card int) {
	s.estimator.Reset()
	s.card = card
	s.attached = true
	s.fired = false
}

func (s *ScratchSurface) Detach() {
	s.estimator.Reset()
	s.card = -1
	s.attached = false
	s.fired = false
}

func (s *ScratchSurface) Card() (int, bool) {
	return s.card, s.attached
}

func (s *ScratchSurface) Begin(x, y float64) (float64, bool) {
	if !s.attached {
		return 0, false
	}
	return s.check(s.estimator.Begin(x, y))
}

// Move feeds a pointer position and reports the current coverage and whether
// this move is the one that crossed the threshold.
func (s *ScratchSurface) Move(x, y float64) (float64, bool) {
	if !s.attached {
		return 0, false
	}
	return s.check(s.estimator.Move(x, y))
}

func (s *ScratchSurface) Coverage() float64 {
	return s.estimator.Coverage()
}

func (s *ScratchSurface) End() {
	s.estimator.End()
}

func (s *ScratchSurface) check(coverage float64) (float64, bool) {
	if s.fired || coverage <= s.threshold {
		return coverage, false
	}
	s.fired = true
	return coverage, true
}
