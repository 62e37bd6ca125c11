package hostedauth

// Snapshot is a platform's raw view of the current session. The zero
// value is the fully absent reading: not authenticated, no user. A nil
// or capability poor platform is reported as exactly that value, so
// downstream code never branches on "unknown".
type Snapshot struct {
	Authenticated bool
	User          *Profile
}

// clone keeps platform owned profiles out of consumer hands.
func (s Snapshot) clone() Snapshot {
	s.User = s.User.Clone()
	return s
}

// State is the normalized view consumers read: the snapshot plus the
// bootstrap gate. Loading starts true, becomes false exactly once, and
// never reverts.
type State struct {
	Authenticated bool
	Loading       bool
	User          *Profile
}

// LoggedIn reports whether the session is usable for personalization:
// authenticated and carrying a profile.
func (s State) LoggedIn() bool {
	return s.Authenticated && s.User != nil
}

// stateOf combines a settled snapshot with the gate position.
func stateOf(snap Snapshot, loading bool) State {
	if loading {
		// The gate hides platform readings entirely while open.
		return State{Loading: true}
	}
	return State{
		Authenticated: snap.Authenticated,
		Loading:       false,
		User:          snap.User,
	}
}
