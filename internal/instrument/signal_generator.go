package instrument

import (
	"strconv"
	"strings"
	"sync"

	"github.com/unusual-audio/workbench/internal/config"
	"github.com/unusual-audio/workbench/internal/scpi"
)

// Waveform is the shape selected by SOURce:FUNCtion. Values are the short
// SCPI mnemonics, which is also what FUNCtion? reports.
type Waveform string

const (
	WaveformSine   Waveform = "SIN"
	WaveformSquare Waveform = "SQU"
	WaveformPulse  Waveform = "PULS"
	WaveformRamp   Waveform = "RAMP"
	WaveformNoise  Waveform = "NOIS"
	WaveformDC     Waveform = "DC"
)

// parseWaveform maps a FUNCtion argument (short or long mnemonic) to its
// waveform, reporting whether the token was recognized
func parseWaveform(token string) (Waveform, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "SIN", "SINUSOID":
		return WaveformSine, true
	case "SQU", "SQUARE":
		return WaveformSquare, true
	case "PULS", "PULSE":
		return WaveformPulse, true
	case "RAMP":
		return WaveformRamp, true
	case "NOIS", "NOISE":
		return WaveformNoise, true
	case "DC":
		return WaveformDC, true
	default:
		return "", false
	}
}

// ChannelConfig is the mutable state of one output channel. Command handlers
// mutate it; whatever consumes the channel (a synthesis backend, a test)
// reads it. Amplitude and offset are full-scale fractions, not volts.
type ChannelConfig struct {
	Waveform      Waveform
	FrequencyHz   float64
	AmplitudeFS   float64
	OffsetFS      float64
	DutyCyclePct  float64
	PhaseDeg      float64
	OutputEnabled bool
}

// Fixed bounds for parameters that are not configurable per deployment
var (
	dutyCycleMin = 0.0
	dutyCycleMax = 100.0
	dutyCycleDef = 50.0

	phaseMin = -360.0
	phaseMax = 360.0
	phaseDef = 0.0
)

// SignalGenerator is a multi-channel signal generator personality. It owns
// the per-channel configuration state, registers the SOURce/OUTPut command
// patterns on top of the common-command set, and serializes all command
// handling behind one lock so several connections can safely share the
// session.
type SignalGenerator struct {
	session  *scpi.Instrument
	bounds   config.ChannelsConfig
	channels []ChannelConfig

	// Output calibration in Vrms at full scale. Unset until CALibration:VALue
	// is written; querying before that is a settings conflict.
	calibrationVRMS *float64

	mu sync.Mutex
}

// Compile-time check of the line server contract
var _ scpi.CommandHandler = (*SignalGenerator)(nil)

// NewSignalGenerator creates a generator with the given identity and channel
// parameter bounds. Patterns that share a prefix (VOLT:OFFS vs VOLT,
// FUNC:SQU:DCYC vs FUNC) are registered most-specific-first because dispatch
// is first-match-wins.
func NewSignalGenerator(identity string, bounds config.ChannelsConfig) *SignalGenerator {
	g := &SignalGenerator{bounds: bounds}

	set := scpi.NewCommandSet()
	set.Register(`^SOUR(?:ce)?(\d*):FUNC(?:tion)?:SQU(?:are)?:DCYC(?:le)?\s+(\S+)$`, g.dutyCycleSet)
	set.Register(`^SOUR(?:ce)?(\d*):FUNC(?:tion)?:SQU(?:are)?:DCYC(?:le)?\?(?:\s+(\S+))?$`, g.dutyCycleQuery)
	set.Register(`^SOUR(?:ce)?(\d*):FUNC(?:tion)?(?::SHAP(?:e)?)?\s+(\S+)$`, g.functionSet)
	set.Register(`^SOUR(?:ce)?(\d*):FUNC(?:tion)?(?::SHAP(?:e)?)?\?$`, g.functionQuery)
	set.Register(`^SOUR(?:ce)?(\d*):FREQ(?:uency)?\s+(\S+)$`, g.frequencySet)
	set.Register(`^SOUR(?:ce)?(\d*):FREQ(?:uency)?\?(?:\s+(\S+))?$`, g.frequencyQuery)
	set.Register(`^SOUR(?:ce)?(\d*):VOLT(?:age)?:OFFS(?:et)?\s+(\S+)$`, g.offsetSet)
	set.Register(`^SOUR(?:ce)?(\d*):VOLT(?:age)?:OFFS(?:et)?\?(?:\s+(\S+))?$`, g.offsetQuery)
	set.Register(`^SOUR(?:ce)?(\d*):VOLT(?:age)?\s+(\S+)$`, g.voltageSet)
	set.Register(`^SOUR(?:ce)?(\d*):VOLT(?:age)?\?(?:\s+(\S+))?$`, g.voltageQuery)
	set.Register(`^SOUR(?:ce)?(\d*):PHAS(?:e)?\s+(\S+)$`, g.phaseSet)
	set.Register(`^SOUR(?:ce)?(\d*):PHAS(?:e)?\?(?:\s+(\S+))?$`, g.phaseQuery)
	set.Register(`^OUTP(?:ut)?(\d*)\s+(ON|OFF|1|0)$`, g.outputSet)
	set.Register(`^OUTP(?:ut)?(\d*)\?$`, g.outputQuery)
	set.Register(`^CAL(?:ibration)?:VAL(?:ue)?\s+(\S+)$`, g.calibrationSet)
	set.Register(`^CAL(?:ibration)?:VAL(?:ue)?\?$`, g.calibrationQuery)

	g.resetChannels()
	g.session = scpi.NewInstrument(identity, set, g.resetChannels)
	return g
}

// HandleCommand dispatches one command line under the session lock. This is
// the serialization point the line server relies on when multiple
// connections target the same instrument.
func (g *SignalGenerator) HandleCommand(line string) *string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.HandleCommand(line)
}

// Session exposes the underlying SCPI session (for wiring metrics and for
// tests that inspect the status model)
func (g *SignalGenerator) Session() *scpi.Instrument {
	return g.session
}

// Channel returns a copy of the numbered channel's configuration (1-based)
func (g *SignalGenerator) Channel(n int) (ChannelConfig, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n < 1 || n > len(g.channels) {
		return ChannelConfig{}, false
	}
	return g.channels[n-1], true
}

// resetChannels restores every channel to its default configuration and
// drops the calibration. Runs at construction and as the *RST cascade hook;
// the caller already holds the session lock in the *RST path.
func (g *SignalGenerator) resetChannels() {
	g.channels = make([]ChannelConfig, g.bounds.Count)
	for i := range g.channels {
		g.channels[i] = ChannelConfig{
			Waveform:     WaveformSine,
			FrequencyHz:  *g.bounds.Frequency.Default,
			AmplitudeFS:  *g.bounds.Amplitude.Default,
			OffsetFS:     *g.bounds.Offset.Default,
			DutyCyclePct: dutyCycleDef,
			PhaseDeg:     phaseDef,
		}
	}
	g.calibrationVRMS = nil
}

// channel resolves an optional channel capture group (empty means channel 1)
func (g *SignalGenerator) channel(arg string) (*ChannelConfig, error) {
	number := 1
	if arg != "" {
		value, err := strconv.Atoi(arg)
		if err != nil {
			return nil, scpi.ErrDataType()
		}
		number = value
	}
	if number < 1 || number > len(g.channels) {
		return nil, scpi.ErrDataOutOfRange()
	}
	return &g.channels[number-1], nil
}

// functionSet handles SOURce<n>:FUNCtion <waveform>
func (g *SignalGenerator) functionSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	waveform, ok := parseWaveform(args[1])
	if !ok {
		return nil, scpi.ErrIllegalParameterValue()
	}
	channel.Waveform = waveform
	return nil, nil
}

// functionQuery handles SOURce<n>:FUNCtion?
func (g *SignalGenerator) functionQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	return scpi.Response(string(channel.Waveform)), nil
}

// frequencySet handles SOURce<n>:FREQuency <hz|MIN|MAX|DEF>
func (g *SignalGenerator) frequencySet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := scpi.ParseFloat(args[1], g.bounds.Frequency.Min, g.bounds.Frequency.Max, g.bounds.Frequency.Default, true)
	if err != nil {
		return nil, err
	}
	channel.FrequencyHz = value
	return nil, nil
}

// frequencyQuery handles SOURce<n>:FREQuency? [MIN|MAX|DEF]
func (g *SignalGenerator) frequencyQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	response, err := scpi.QueryResponse(args[1], g.bounds.Frequency.Min, g.bounds.Frequency.Max, g.bounds.Frequency.Default, channel.FrequencyHz)
	if err != nil {
		return nil, err
	}
	return scpi.Response(response), nil
}

// voltageSet handles SOURce<n>:VOLTage <amplitude|MIN|MAX|DEF>
func (g *SignalGenerator) voltageSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := scpi.ParseFloat(args[1], g.bounds.Amplitude.Min, g.bounds.Amplitude.Max, g.bounds.Amplitude.Default, true)
	if err != nil {
		return nil, err
	}
	channel.AmplitudeFS = value
	return nil, nil
}

// voltageQuery handles SOURce<n>:VOLTage? [MIN|MAX|DEF]
func (g *SignalGenerator) voltageQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	response, err := scpi.QueryResponse(args[1], g.bounds.Amplitude.Min, g.bounds.Amplitude.Max, g.bounds.Amplitude.Default, channel.AmplitudeFS)
	if err != nil {
		return nil, err
	}
	return scpi.Response(response), nil
}

// offsetSet handles SOURce<n>:VOLTage:OFFSet <offset|MIN|MAX|DEF>
func (g *SignalGenerator) offsetSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := scpi.ParseFloat(args[1], g.bounds.Offset.Min, g.bounds.Offset.Max, g.bounds.Offset.Default, true)
	if err != nil {
		return nil, err
	}
	channel.OffsetFS = value
	return nil, nil
}

// offsetQuery handles SOURce<n>:VOLTage:OFFSet? [MIN|MAX|DEF]
func (g *SignalGenerator) offsetQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	response, err := scpi.QueryResponse(args[1], g.bounds.Offset.Min, g.bounds.Offset.Max, g.bounds.Offset.Default, channel.OffsetFS)
	if err != nil {
		return nil, err
	}
	return scpi.Response(response), nil
}

// dutyCycleSet handles SOURce<n>:FUNCtion:SQUare:DCYCle <percent|MIN|MAX|DEF>
func (g *SignalGenerator) dutyCycleSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := scpi.ParseFloat(args[1], &dutyCycleMin, &dutyCycleMax, &dutyCycleDef, true)
	if err != nil {
		return nil, err
	}
	channel.DutyCyclePct = value
	return nil, nil
}

// dutyCycleQuery handles SOURce<n>:FUNCtion:SQUare:DCYCle? [MIN|MAX|DEF]
func (g *SignalGenerator) dutyCycleQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	response, err := scpi.QueryResponse(args[1], &dutyCycleMin, &dutyCycleMax, &dutyCycleDef, channel.DutyCyclePct)
	if err != nil {
		return nil, err
	}
	return scpi.Response(response), nil
}

// phaseSet handles SOURce<n>:PHASe <degrees|MIN|MAX|DEF>
func (g *SignalGenerator) phaseSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	value, err := scpi.ParseFloat(args[1], &phaseMin, &phaseMax, &phaseDef, true)
	if err != nil {
		return nil, err
	}
	channel.PhaseDeg = value
	return nil, nil
}

// phaseQuery handles SOURce<n>:PHASe? [MIN|MAX|DEF]
func (g *SignalGenerator) phaseQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	response, err := scpi.QueryResponse(args[1], &phaseMin, &phaseMax, &phaseDef, channel.PhaseDeg)
	if err != nil {
		return nil, err
	}
	return scpi.Response(response), nil
}

// outputSet handles OUTPut<n> ON|OFF|1|0
func (g *SignalGenerator) outputSet(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(args[1]) {
	case "ON", "1":
		channel.OutputEnabled = true
	case "OFF", "0":
		channel.OutputEnabled = false
	default:
		return nil, scpi.ErrIllegalParameterValue()
	}
	return nil, nil
}

// outputQuery handles OUTPut<n>?
func (g *SignalGenerator) outputQuery(args []string) (*string, error) {
	channel, err := g.channel(args[0])
	if err != nil {
		return nil, err
	}
	if channel.OutputEnabled {
		return scpi.Response("1"), nil
	}
	return scpi.Response("0"), nil
}

// calibrationSet handles CALibration:VALue <vrms at full scale>
func (g *SignalGenerator) calibrationSet(args []string) (*string, error) {
	value, err := scpi.ParseFloat(args[0], nil, nil, nil, false)
	if err != nil {
		return nil, err
	}
	if value <= 0 {
		return nil, scpi.ErrDataOutOfRange()
	}
	g.calibrationVRMS = &value
	return nil, nil
}

// calibrationQuery handles CALibration:VALue?. Querying before a calibration
// has been written is an operation invalid in the current state.
func (g *SignalGenerator) calibrationQuery(args []string) (*string, error) {
	if g.calibrationVRMS == nil {
		return nil, scpi.ErrSettingsConflict()
	}
	return scpi.Response(scpi.FormatFloat(*g.calibrationVRMS)), nil
}
