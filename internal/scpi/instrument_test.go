package scpi

import (
	"fmt"
	"testing"
)

const testIdentity = "Unusual Audio,Workbench,0,1.0"

func newTestInstrument() *Instrument {
	return NewInstrument(testIdentity, nil, nil)
}

// handle runs a command that must produce a response line
func handle(t *testing.T, inst *Instrument, command string) string {
	t.Helper()
	response := inst.HandleCommand(command)
	if response == nil {
		t.Fatalf("HandleCommand(%q) returned no response", command)
	}
	return *response
}

func TestIdentityQuery(t *testing.T) {
	inst := newTestInstrument()
	if got := handle(t, inst, "*IDN?"); got != testIdentity {
		t.Errorf("*IDN? = %q, want %q", got, testIdentity)
	}
}

func TestCommandsAreCaseInsensitive(t *testing.T) {
	inst := newTestInstrument()
	if got := handle(t, inst, "*idn?"); got != testIdentity {
		t.Errorf("*idn? = %q, want %q", got, testIdentity)
	}
	if got := handle(t, inst, "syst:err?"); got != `0,"No error"` {
		t.Errorf("syst:err? = %q, want %q", got, `0,"No error"`)
	}
}

func TestOperationCompleteQuery(t *testing.T) {
	inst := newTestInstrument()
	if got := handle(t, inst, "*OPC?"); got != "1" {
		t.Errorf("*OPC? = %q, want \"1\"", got)
	}
	if got := handle(t, inst, "*ESR?"); got != "1" {
		t.Errorf("*ESR? after *OPC? = %q, want \"1\" (operation complete bit)", got)
	}
}

func TestPushErrorSetsESRBits(t *testing.T) {
	tests := []struct {
		code    int
		wantESR string
	}{
		{-113, "32"}, // Command error bit 0x20
		{-104, "32"},
		{-200, "16"}, // Execution error bit 0x10
		{-222, "16"},
		{-300, "8"}, // Device-specific error bit 0x08
		{-350, "8"},
		{-400, "4"}, // Query error bit 0x04
		{-430, "4"},
		{-999, "4"},
		{0, "16"},  // Fallback: execution error bit
		{42, "16"}, // Fallback for non-negative codes
	}

	for _, tt := range tests {
		inst := newTestInstrument()
		inst.PushError(tt.code, "test")
		if got := handle(t, inst, "*ESR?"); got != tt.wantESR {
			t.Errorf("code %d: *ESR? = %q, want %q", tt.code, got, tt.wantESR)
		}
	}
}

func TestESRQueryReadsAndClears(t *testing.T) {
	inst := newTestInstrument()
	inst.PushError(-113, "Undefined header")

	if got := handle(t, inst, "*ESR?"); got != "32" {
		t.Errorf("first *ESR? = %q, want \"32\"", got)
	}
	if got := handle(t, inst, "*ESR?"); got != "0" {
		t.Errorf("second *ESR? = %q, want \"0\"", got)
	}
}

func TestClearStatusResetsESRAndQueue(t *testing.T) {
	inst := newTestInstrument()
	inst.PushError(-113, "Undefined header")
	inst.PushError(-222, "Data out of range")

	if response := inst.HandleCommand("*CLS"); response != nil {
		t.Errorf("*CLS returned %q, want no response", *response)
	}
	if got := handle(t, inst, "*ESR?"); got != "0" {
		t.Errorf("*ESR? after *CLS = %q, want \"0\"", got)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `0,"No error"` {
		t.Errorf("SYST:ERR? after *CLS = %q, want %q", got, `0,"No error"`)
	}
}

func TestSystemErrorQueueIsFIFO(t *testing.T) {
	inst := newTestInstrument()
	inst.PushError(-113, "Undefined header")
	inst.PushError(-222, "Data out of range")

	if got := handle(t, inst, "SYSTem:ERRor?"); got != `-113,"Undefined header"` {
		t.Errorf("first SYSTem:ERRor? = %q, want %q", got, `-113,"Undefined header"`)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `-222,"Data out of range"` {
		t.Errorf("second SYST:ERR? = %q, want %q", got, `-222,"Data out of range"`)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `0,"No error"` {
		t.Errorf("drained SYST:ERR? = %q, want %q", got, `0,"No error"`)
	}
}

func TestSystemErrorDoublesEmbeddedQuotes(t *testing.T) {
	inst := newTestInstrument()
	inst.PushError(-350, `bad "token" seen`)

	want := `-350,"bad ""token"" seen"`
	if got := handle(t, inst, "SYST:ERR?"); got != want {
		t.Errorf("SYST:ERR? = %q, want %q", got, want)
	}
}

func TestUndefinedHeaderQueuesError(t *testing.T) {
	inst := newTestInstrument()
	if response := inst.HandleCommand("BOGUS:COMMAND"); response != nil {
		t.Errorf("BOGUS:COMMAND returned %q, want no response", *response)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `-113,"Undefined header"` {
		t.Errorf("SYST:ERR? = %q, want %q", got, `-113,"Undefined header"`)
	}
}

func TestServiceRequestEnable(t *testing.T) {
	inst := newTestInstrument()

	// *SRE acknowledges with an empty response line
	response := inst.HandleCommand("*SRE 32")
	if response == nil || *response != "" {
		t.Fatalf("*SRE 32 response = %v, want empty string", response)
	}
	if got := handle(t, inst, "*SRE?"); got != "32" {
		t.Errorf("*SRE? = %q, want \"32\"", got)
	}

	// Only the low byte of the mask is kept
	handle(t, inst, "*SRE 300")
	if got := handle(t, inst, "*SRE?"); got != "44" {
		t.Errorf("*SRE? after *SRE 300 = %q, want \"44\"", got)
	}
}

func TestStatusByteSummaryBit(t *testing.T) {
	inst := newTestInstrument()

	if got := handle(t, inst, "*STB?"); got != "0" {
		t.Errorf("idle *STB? = %q, want \"0\"", got)
	}

	handle(t, inst, "*SRE 32")
	inst.PushError(-113, "Undefined header") // Sets ESR bit 0x20
	if got := handle(t, inst, "*STB?"); got != "32" {
		t.Errorf("*STB? with enabled event = %q, want \"32\"", got)
	}

	// Reading the ESR clears it, dropping the summary bit
	handle(t, inst, "*ESR?")
	if got := handle(t, inst, "*STB?"); got != "0" {
		t.Errorf("*STB? after *ESR? = %q, want \"0\"", got)
	}

	// A masked-out event does not raise the summary bit
	handle(t, inst, "*SRE 4")
	inst.PushError(-113, "Undefined header")
	if got := handle(t, inst, "*STB?"); got != "0" {
		t.Errorf("*STB? with masked event = %q, want \"0\"", got)
	}
}

func TestResetClearsStatusAndCascades(t *testing.T) {
	cascaded := false
	inst := NewInstrument(testIdentity, nil, func() { cascaded = true })
	inst.PushError(-113, "Undefined header")

	if response := inst.HandleCommand("*RST"); response != nil {
		t.Errorf("*RST returned %q, want no response", *response)
	}
	if !cascaded {
		t.Error("*RST did not invoke the device reset hook")
	}
	if got := handle(t, inst, "*ESR?"); got != "0" {
		t.Errorf("*ESR? after *RST = %q, want \"0\"", got)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `0,"No error"` {
		t.Errorf("SYST:ERR? after *RST = %q, want %q", got, `0,"No error"`)
	}
}

func TestHandlerProtocolErrorIsQueued(t *testing.T) {
	set := NewCommandSet()
	set.Register(`^FAIL$`, func(args []string) (*string, error) {
		return nil, NewError(-221, "Settings conflict")
	})
	inst := NewInstrument(testIdentity, set, nil)

	if response := inst.HandleCommand("FAIL"); response != nil {
		t.Errorf("FAIL returned %q, want no response", *response)
	}
	if got := handle(t, inst, "SYST:ERR?"); got != `-221,"Settings conflict"` {
		t.Errorf("SYST:ERR? = %q, want %q", got, `-221,"Settings conflict"`)
	}

	// The session stays usable after a failing command
	if got := handle(t, inst, "*IDN?"); got != testIdentity {
		t.Errorf("*IDN? after error = %q, want %q", got, testIdentity)
	}
}

func TestUnexpectedHandlerErrorMapsToDeviceError(t *testing.T) {
	set := NewCommandSet()
	set.Register(`^BROKEN$`, func(args []string) (*string, error) {
		return nil, fmt.Errorf("database on fire: credentials leaked")
	})
	inst := NewInstrument(testIdentity, set, nil)

	if response := inst.HandleCommand("BROKEN"); response != nil {
		t.Errorf("BROKEN returned %q, want no response", *response)
	}

	// Internal detail must not leak onto the wire
	if got := handle(t, inst, "SYST:ERR?"); got != `-300,"Device error"` {
		t.Errorf("SYST:ERR? = %q, want %q", got, `-300,"Device error"`)
	}
}

func TestPartialMutationStandsAfterHandlerError(t *testing.T) {
	applied := 0
	set := NewCommandSet()
	set.Register(`^APPLY$`, func(args []string) (*string, error) {
		applied++ // Mutation before the failure is not rolled back
		return nil, NewError(-222, "Data out of range")
	})
	inst := NewInstrument(testIdentity, set, nil)

	inst.HandleCommand("APPLY")
	if applied != 1 {
		t.Errorf("applied = %d, want 1 (partial mutation must stand)", applied)
	}
}

func TestHandlerReceivesCaptureGroups(t *testing.T) {
	var got []string
	set := NewCommandSet()
	set.Register(`^SET\s+(\S+)(?:\s+(\S+))?$`, func(args []string) (*string, error) {
		got = append([]string{}, args...)
		return nil, nil
	})
	inst := NewInstrument(testIdentity, set, nil)

	inst.HandleCommand("SET alpha")
	if len(got) != 2 || got[0] != "alpha" || got[1] != "" {
		t.Errorf("args = %q, want [alpha \"\"] (unmatched optional group is empty)", got)
	}

	inst.HandleCommand("SET alpha beta")
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("args = %q, want [alpha beta]", got)
	}
}
