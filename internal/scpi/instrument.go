package scpi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/unusual-audio/workbench/internal/logger"
	"github.com/unusual-audio/workbench/internal/metrics"
)

// Event status register bits and the status byte summary bit per IEEE-488.2.
// PushError sets exactly one error bit per pushed code; the ranges are a
// compatibility contract and must not change.
const (
	ESROperationComplete = 0x01
	ESRQueryError        = 0x04
	ESRDeviceError       = 0x08
	ESRExecutionError    = 0x10
	ESRCommandError      = 0x20

	STBEventSummary = 0x20
)

type queuedError struct {
	code    int
	message string
}

// Instrument is one logical SCPI instrument session: an identity string, the
// resolved command list, and the IEEE-488.2 status model (event status
// register, service request enable register, FIFO error queue).
//
// An Instrument is not safe for concurrent use. When several connections
// share one session, the owner must serialize HandleCommand calls - the
// personality types in internal/instrument hold a mutex around it.
type Instrument struct {
	identity    string
	commands    []Command
	errors      []queuedError
	esr         uint8
	sre         uint8
	resetDevice func()
	metrics     metrics.Collector
}

// NewInstrument builds a session exposing the IEEE-488.2 common commands
// (*IDN?, *OPC?, *RST, *CLS, *ESR?, *SRE, *STB?, SYSTem:ERRor?) plus every
// command in extra, in that order. extra may be nil for a bare session.
// resetDevice, when non-nil, runs after *RST has cleared the status model so
// a hosting personality can cascade into resetting its own device state.
func NewInstrument(identity string, extra *CommandSet, resetDevice func()) *Instrument {
	inst := &Instrument{
		identity:    identity,
		resetDevice: resetDevice,
		metrics:     metrics.NewNullMetrics(),
	}

	set := NewCommandSet()
	inst.registerCommon(set)
	if extra != nil {
		set.Include(extra)
	}
	inst.commands = set.resolved()
	return inst
}

// SetMetrics attaches a metrics collector. Call before serving; the default
// is the no-op collector.
func (inst *Instrument) SetMetrics(collector metrics.Collector) {
	inst.metrics = collector
}

// Identity returns the *IDN? response string
func (inst *Instrument) Identity() string {
	return inst.identity
}

// PushError appends a protocol error to the FIFO error queue and sets the
// matching event status register bit by code range. Codes outside the four
// standard ranges (including non-negative codes, which should not normally
// occur) fall back to the execution error bit.
func (inst *Instrument) PushError(code int, message string) {
	inst.errors = append(inst.errors, queuedError{code: code, message: message})
	switch {
	case code <= -100 && code > -200:
		inst.esr |= ESRCommandError
	case code <= -200 && code > -300:
		inst.esr |= ESRExecutionError
	case code <= -300 && code > -400:
		inst.esr |= ESRDeviceError
	case code <= -400:
		inst.esr |= ESRQueryError
	default:
		inst.esr |= ESRExecutionError
	}
	inst.metrics.IncrementProtocolErrors()
}

// HandleCommand dispatches one trimmed command line against the session's
// command list. The first matching pattern wins; the handler receives the
// capture groups as string arguments. A nil return means no response line.
//
// Every failure path is absorbed here: unrecognized headers queue
// (-113, "Undefined header"), handler protocol errors queue their own
// (code, message), and any unexpected fault is logged server-side and queued
// as (-300, "Device error"). A bad command never kills the session.
func (inst *Instrument) HandleCommand(line string) *string {
	for _, command := range inst.commands {
		match := command.Pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		response, err := command.Handler(match[1:])
		if err != nil {
			var scpiErr *Error
			if errors.As(err, &scpiErr) {
				inst.PushError(scpiErr.Code, scpiErr.Message)
			} else {
				logger.LogError("Device error handling %q: %v", line, err)
				inst.PushError(CodeDeviceError, "Device error")
			}
			return nil
		}
		return response
	}
	inst.PushError(CodeUndefinedHeader, "Undefined header")
	return nil
}

// registerCommon registers the IEEE-488.2 common command subset bound to
// this session. Patterns mirror the standard mnemonics with their optional
// long forms.
func (inst *Instrument) registerCommon(set *CommandSet) {
	set.Register(`^\*IDN\?$`, inst.identityQuery)
	set.Register(`^\*OPC\?$`, inst.operationCompleteQuery)
	set.Register(`^\*RST$`, inst.reset)
	set.Register(`^\*CLS$`, inst.clearStatus)
	set.Register(`^\*ESR\?$`, inst.esrQuery)
	set.Register(`^\*SRE\s+(\d+)$`, inst.sreSet)
	set.Register(`^\*SRE\?$`, inst.sreQuery)
	set.Register(`^\*STB\?$`, inst.stbQuery)
	set.Register(`^SYST(?:em)?:ERR(?:or)?\?$`, inst.systemErrorQuery)
}

// identityQuery handles *IDN?
func (inst *Instrument) identityQuery(args []string) (*string, error) {
	return Response(inst.identity), nil
}

// operationCompleteQuery handles *OPC?. Commands complete synchronously, so
// the operation-complete bit is set immediately and "1" returned - there is
// no pending-operation tracking.
func (inst *Instrument) operationCompleteQuery(args []string) (*string, error) {
	inst.esr |= ESROperationComplete
	return Response("1"), nil
}

// reset handles *RST: clear status, then cascade into the device-reset hook
func (inst *Instrument) reset(args []string) (*string, error) {
	response, err := inst.clearStatus(args)
	if err != nil {
		return response, err
	}
	if inst.resetDevice != nil {
		inst.resetDevice()
	}
	return nil, nil
}

// clearStatus handles *CLS: empty the error queue and zero the ESR
func (inst *Instrument) clearStatus(args []string) (*string, error) {
	inst.errors = nil
	inst.esr = 0
	return nil, nil
}

// esrQuery handles *ESR? with read-and-clear semantics
func (inst *Instrument) esrQuery(args []string) (*string, error) {
	response := strconv.Itoa(int(inst.esr))
	inst.esr = 0
	return Response(response), nil
}

// sreSet handles *SRE <mask>. The original instrument acknowledges with an
// empty response line, so this returns "" rather than nil.
func (inst *Instrument) sreSet(args []string) (*string, error) {
	mask, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, ErrDataType()
	}
	inst.sre = uint8(mask & 0xFF)
	return Response(""), nil
}

// sreQuery handles *SRE?
func (inst *Instrument) sreQuery(args []string) (*string, error) {
	return Response(strconv.Itoa(int(inst.sre))), nil
}

// stbQuery handles *STB?. Only the event summary bit is modeled: it reads as
// set while any enabled event status bit is set.
func (inst *Instrument) stbQuery(args []string) (*string, error) {
	stb := 0
	if inst.esr&inst.sre != 0 {
		stb |= STBEventSummary
	}
	return Response(strconv.Itoa(stb)), nil
}

// systemErrorQuery handles SYSTem:ERRor?: pop the oldest queued error, or
// report 0,"No error" when the queue is empty. Embedded quotes in the message
// are doubled per the SCPI string escaping convention.
func (inst *Instrument) systemErrorQuery(args []string) (*string, error) {
	code, message := 0, "No error"
	if len(inst.errors) > 0 {
		entry := inst.errors[0]
		inst.errors = inst.errors[1:]
		code, message = entry.code, entry.message
	}
	escaped := strings.ReplaceAll(message, `"`, `""`)
	return Response(strconv.Itoa(code) + `,"` + escaped + `"`), nil
}
