package model

// Mutator derives a new entity from an old one. Mutators must be pure and
// must not change the entity id.
type Mutator func(old FeedItem) FeedItem

// SetRead returns a mutator that sets the read flag.
func SetRead(read bool) Mutator {
	return func(old FeedItem) FeedItem {
		old.IsRead = read
		return old
	}
}

// SetStar returns a mutator that sets the starred flag.
func SetStar(star bool) Mutator {
	return func(old FeedItem) FeedItem {
		old.IsStar = star
		return old
	}
}

// ToggleRead flips the read flag.
func ToggleRead(old FeedItem) FeedItem {
	old.IsRead = !old.IsRead
	return old
}

// ToggleStar flips the starred flag.
func ToggleStar(old FeedItem) FeedItem {
	old.IsStar = !old.IsStar
	return old
}

// Apply runs m against item and returns the result as a new pointer. The id
// is restored if the mutator changed it.
func (m Mutator) Apply(item *FeedItem) *FeedItem {
	next := m(*item)
	next.ID = item.ID
	return &next
}
