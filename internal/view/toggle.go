// Package view holds client-visible state that mirrors remote counters and
// is updated in two phases: a tentative local change, then confirm or roll
// back depending on the remote outcome.
package view

// Toggle is a boolean relationship with its displayed counter, such as
// "liked, 12 likes" or "following, 40 followers".
type Toggle struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// Flipped is the state after toggling. The count never drops below zero.
func (t Toggle) Flipped() Toggle {
	if t.Active {
		return Toggle{Active: false, Count: max(0, t.Count-1)}
	}
	return Toggle{Active: true, Count: t.Count + 1}
}

// Pending is an in-flight toggle.
type Pending struct {
	original  Toggle
	tentative Toggle
	settled   bool
	result    Toggle
}

// Begin applies the tentative flip of t.
func Begin(t Toggle) *Pending {
	return &Pending{original: t, tentative: t.Flipped()}
}

// Tentative is the state to display while the remote call runs.
func (p *Pending) Tentative() Toggle {
	return p.tentative
}

// Commit settles on the tentative state.
func (p *Pending) Commit() Toggle {
	if !p.settled {
		p.settled = true
		p.result = p.tentative
	}
	return p.result
}

// Rollback settles on the original state.
func (p *Pending) Rollback() Toggle {
	if !p.settled {
		p.settled = true
		p.result = p.original
	}
	return p.result
}

// Settle commits when err is nil and rolls back otherwise.
func (p *Pending) Settle(err error) Toggle {
	if err != nil {
		return p.Rollback()
	}
	return p.Commit()
}
