package scpi

import "testing"

func TestFirstMatchWins(t *testing.T) {
	set := NewCommandSet()
	set.Register(`^FREQ\s+MAX$`, func(args []string) (*string, error) {
		return Response("specific"), nil
	})
	set.Register(`^FREQ\s+(\S+)$`, func(args []string) (*string, error) {
		return Response("general"), nil
	})
	inst := NewInstrument(testIdentity, set, nil)

	if got := handle(t, inst, "FREQ MAX"); got != "specific" {
		t.Errorf("FREQ MAX dispatched to %q, want the earlier registration", got)
	}
	if got := handle(t, inst, "FREQ 440"); got != "general" {
		t.Errorf("FREQ 440 dispatched to %q, want the general pattern", got)
	}
}

func TestRegisterIsCaseInsensitive(t *testing.T) {
	set := NewCommandSet()
	set.Register(`^PING$`, func(args []string) (*string, error) {
		return Response("pong"), nil
	})
	inst := NewInstrument(testIdentity, set, nil)

	for _, line := range []string{"PING", "ping", "PiNg"} {
		if got := handle(t, inst, line); got != "pong" {
			t.Errorf("HandleCommand(%q) = %q, want \"pong\"", line, got)
		}
	}
}

func TestRegisterCaseSensitive(t *testing.T) {
	set := NewCommandSet()
	set.RegisterCaseSensitive(`^STRICT$`, func(args []string) (*string, error) {
		return Response("ok"), nil
	})
	inst := NewInstrument(testIdentity, set, nil)

	if got := handle(t, inst, "STRICT"); got != "ok" {
		t.Errorf("STRICT = %q, want \"ok\"", got)
	}
	if response := inst.HandleCommand("strict"); response != nil {
		t.Errorf("lowercase match of a case-sensitive pattern returned %q", *response)
	}
}

func TestIncludePreservesOrder(t *testing.T) {
	base := NewCommandSet()
	base.Register(`^CMD$`, func(args []string) (*string, error) {
		return Response("base"), nil
	})

	set := NewCommandSet()
	set.Register(`^CMD$`, func(args []string) (*string, error) {
		return Response("override"), nil
	})
	set.Include(base)

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	inst := NewInstrument(testIdentity, set, nil)
	if got := handle(t, inst, "CMD"); got != "override" {
		t.Errorf("CMD = %q, want the set registered before Include to win", got)
	}
}

func TestCommonCommandsRegisteredBeforeExtras(t *testing.T) {
	// An instrument-specific set cannot shadow the common commands
	set := NewCommandSet()
	set.Register(`^\*IDN\?$`, func(args []string) (*string, error) {
		return Response("impostor"), nil
	})
	inst := NewInstrument(testIdentity, set, nil)

	if got := handle(t, inst, "*IDN?"); got != testIdentity {
		t.Errorf("*IDN? = %q, want the common handler to win", got)
	}
}
