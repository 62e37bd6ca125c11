package hostedauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateOfHidesSnapshotWhileLoading(t *testing.T) {
	snap := Snapshot{
		Authenticated: true,
		User:          &Profile{Subject: "auth0|alice", Email: "alice@example.com"},
	}

	state := stateOf(snap, true)

	assert.True(t, state.Loading)
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
}

func TestStateOfExposesSettledSnapshot(t *testing.T) {
	snap := Snapshot{
		Authenticated: true,
		User:          &Profile{Subject: "auth0|alice"},
	}

	state := stateOf(snap, false)

	assert.False(t, state.Loading)
	assert.True(t, state.Authenticated)
	assert.Equal(t, "auth0|alice", state.User.Subject)
}

func TestStateLoggedIn(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{
			name:  "authenticated with profile",
			state: State{Authenticated: true, User: &Profile{Subject: "auth0|alice"}},
			want:  true,
		},
		{
			name:  "authenticated without profile",
			state: State{Authenticated: true},
			want:  false,
		},
		{
			name:  "anonymous",
			state: State{User: &Profile{Subject: "auth0|alice"}},
			want:  false,
		},
		{
			name:  "loading",
			state: State{Loading: true},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.LoggedIn())
		})
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	original := Snapshot{
		Authenticated: true,
		User: &Profile{
			Subject:  "auth0|alice",
			Metadata: map[string]any{"plan": "pro"},
		},
	}

	copied := original.clone()
	copied.User.Subject = "auth0|mallory"
	copied.User.Metadata["plan"] = "free"

	assert.Equal(t, "auth0|alice", original.User.Subject)
	assert.Equal(t, "pro", original.User.Metadata["plan"])
}

func TestSnapshotCloneOfZeroValue(t *testing.T) {
	var zero Snapshot
	copied := zero.clone()
	assert.Nil(t, copied.User)
	assert.False(t, copied.Authenticated)
}
