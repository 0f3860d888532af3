package captions

import (
	"fmt"
	"sync"
)

// Track is the session-owned, always-sorted caption list.
type Track struct {
	mu    sync.RWMutex
	items []Caption
}

// NewTrack builds a track from an initial caption list.
func NewTrack(initial []Caption) (*Track, error) {
	t := &Track{}
	if len(initial) > 0 {
		if err := t.Replace(initial); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Snapshot returns a copy of the current captions in start order.
func (t *Track) Snapshot() []Caption {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Caption, len(t.items))
	copy(out, t.items)
	return out
}

// Len returns the number of captions.
func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Get returns the caption with the given id.
func (t *Track) Get(id string) (Caption, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx := indexOf(t.items, id); idx >= 0 {
		return t.items[idx], true
	}
	return Caption{}, false
}

// Active returns the caption shown at time at, honoring the pre-roll bias.
func (t *Track) Active(at, bias float64) (Caption, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Active(t.items, at, bias)
}

// Replace installs a whole caption list, as done after transcription. Nothing
// is installed when any caption is invalid or two captions share an id.
func (t *Track) Replace(list []Caption) error {
	next := make([]Caption, len(list))
	copy(next, list)
	seen := make(map[string]struct{}, len(next))
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = NewID()
		}
		if err := next[i].Validate(); err != nil {
			return fmt.Errorf("caption %d: %w", i, err)
		}
		if _, dup := seen[next[i].ID]; dup {
			return fmt.Errorf("caption %d: id %s already exists", i, next[i].ID)
		}
		seen[next[i].ID] = struct{}{}
	}
	SortByStart(next)
	t.mu.Lock()
	t.items = next
	t.mu.Unlock()
	return nil
}

// Reset removes every caption.
func (t *Track) Reset() {
	t.mu.Lock()
	t.items = nil
	t.mu.Unlock()
}

// Add creates a caption spanning DefaultManualSpan seconds at the playhead.
func (t *Track) Add(text string, at float64) (Caption, error) {
	if at < 0 {
		at = 0
	}
	return t.Insert(Caption{Text: text, Start: at, End: at + DefaultManualSpan})
}

// Insert adds a caption, assigning an id when it has none.
func (t *Track) Insert(c Caption) (Caption, error) {
	if c.ID == "" {
		c.ID = NewID()
	}
	if err := c.Validate(); err != nil {
		return Caption{}, err
	}
	err := t.mutate(func(list []Caption) ([]Caption, error) {
		if indexOf(list, c.ID) >= 0 {
			return nil, fmt.Errorf("caption %s already exists", c.ID)
		}
		return append(list, c), nil
	})
	if err != nil {
		return Caption{}, err
	}
	return c, nil
}

// SetText retypes a caption.
func (t *Track) SetText(id, text string) (Caption, error) {
	return t.update(id, func(c *Caption) {
		c.Text = text
	})
}

// SetSpan moves both edges of a caption, as a timeline resize does.
func (t *Track) SetSpan(id string, start, end float64) (Caption, error) {
	return t.update(id, func(c *Caption) {
		c.Start = start
		c.End = end
	})
}

// MoveSpan drags a caption to a new start, keeping its duration.
func (t *Track) MoveSpan(id string, start float64) (Caption, error) {
	if start < 0 {
		start = 0
	}
	return t.update(id, func(c *Caption) {
		d := c.Duration()
		c.Start = start
		c.End = start + d
	})
}

// Duplicate inserts a copy of a caption starting where the source ends, with
// the same duration.
func (t *Track) Duplicate(id string) (Caption, error) {
	var created Caption
	err := t.mutate(func(list []Caption) ([]Caption, error) {
		idx := indexOf(list, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		src := list[idx]
		created = Caption{
			ID:    NewID(),
			Text:  src.Text,
			Start: src.End,
			End:   src.End + src.Duration(),
		}
		return append(list, created), nil
	})
	if err != nil {
		return Caption{}, err
	}
	return created, nil
}

// Delete removes a caption.
func (t *Track) Delete(id string) error {
	return t.mutate(func(list []Caption) ([]Caption, error) {
		idx := indexOf(list, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return append(list[:idx], list[idx+1:]...), nil
	})
}

// Shift offsets every caption by delta seconds. The whole shift is rejected
// when it would move any caption before zero.
func (t *Track) Shift(delta float64) error {
	return t.mutate(func(list []Caption) ([]Caption, error) {
		for i := range list {
			list[i].Start = roundCentis(list[i].Start + delta)
			list[i].End = roundCentis(list[i].End + delta)
			if err := list[i].Validate(); err != nil {
				return nil, fmt.Errorf("shift %.2fs: %w", delta, err)
			}
		}
		return list, nil
	})
}

func (t *Track) update(id string, fn func(*Caption)) (Caption, error) {
	var updated Caption
	err := t.mutate(func(list []Caption) ([]Caption, error) {
		idx := indexOf(list, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		c := list[idx]
		fn(&c)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		list[idx] = c
		updated = c
		return list, nil
	})
	if err != nil {
		return Caption{}, err
	}
	return updated, nil
}

// mutate applies fn to a private copy, sorts it, then swaps it in under the
// write lock.
func (t *Track) mutate(fn func([]Caption) ([]Caption, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	work := make([]Caption, len(t.items), len(t.items)+1)
	copy(work, t.items)
	next, err := fn(work)
	if err != nil {
		return err
	}
	SortByStart(next)
	t.items = next
	return nil
}

func indexOf(list []Caption, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
