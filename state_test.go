package unison

import "testing"

func TestState_String(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateLatent, "latent"},
		{StateStarted, "started"},
		{StateClosed, "closed"},
		{State(999), "unknown"},
	}
	for _, c := range cases {
		if s := c.state.String(); s != c.want {
			t.Errorf("expected %q, got %q", c.want, s)
		}
	}
}

func TestState_Values(t *testing.T) {
	// Verify iota ordering
	if StateLatent != 0 {
		t.Errorf("expected StateLatent=0, got %d", StateLatent)
	}
	if StateStarted != 1 {
		t.Errorf("expected StateStarted=1, got %d", StateStarted)
	}
	if StateClosed != 2 {
		t.Errorf("expected StateClosed=2, got %d", StateClosed)
	}
}

func TestConnState_String(t *testing.T) {
	cases := []struct {
		state ConnState
		want  string
	}{
		{Connected, "connected"},
		{Suspended, "suspended"},
		{Reconnected, "reconnected"},
		{Lost, "lost"},
		{ConnState(999), "unknown"},
	}
	for _, c := range cases {
		if s := c.state.String(); s != c.want {
			t.Errorf("expected %q, got %q", c.want, s)
		}
	}
}
