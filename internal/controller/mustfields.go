package controller

// MustFieldTracker counts the empty required fields of an edit group and
// decides when a value change must be signalled upward. Crossing the
// all-filled boundary in either direction always signals; any other
// change signals only with signalEveryChange.
type MustFieldTracker struct {
	empty             map[string]bool
	emptyCount        int
	signalEveryChange bool
}

// NewMustFieldTracker creates an empty tracker.
func NewMustFieldTracker(signalEveryChange bool) *MustFieldTracker {
	return &MustFieldTracker{empty: make(map[string]bool), signalEveryChange: signalEveryChange}
}

// Track registers a required field with its current emptiness.
func (t *MustFieldTracker) Track(name string, empty bool) {
	if was, ok := t.empty[name]; ok && was {
		t.emptyCount--
	}
	t.empty[name] = empty
	if empty {
		t.emptyCount++
	}
}

// Untrack forgets name.
func (t *MustFieldTracker) Untrack(name string) {
	if was, ok := t.empty[name]; ok {
		if was {
			t.emptyCount--
		}
		delete(t.empty, name)
	}
}

// Tracked reports whether name is a tracked required field.
func (t *MustFieldTracker) Tracked(name string) bool {
	_, ok := t.empty[name]
	return ok
}

// Update records a new emptiness for name and reports whether the change
// should be signalled.
func (t *MustFieldTracker) Update(name string, empty bool) bool {
	was, ok := t.empty[name]
	if !ok || was == empty {
		return t.signalEveryChange
	}
	before := t.AllFilled()
	t.empty[name] = empty
	if empty {
		t.emptyCount++
	} else {
		t.emptyCount--
	}
	if before != t.AllFilled() {
		return true
	}
	return t.signalEveryChange
}

// EmptyCount returns the number of empty required fields.
func (t *MustFieldTracker) EmptyCount() int { return t.emptyCount }

// AllFilled reports whether every required field has a value.
func (t *MustFieldTracker) AllFilled() bool { return t.emptyCount == 0 }
