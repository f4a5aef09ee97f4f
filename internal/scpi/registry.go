package scpi

import "regexp"

// Handler executes a matched command. args holds the pattern's capture
// groups in order; unmatched optional groups arrive as empty strings. A nil
// response means the command produces no output line (an action command). A
// returned *Error is queued on the session's error queue; any other error is
// treated as an unexpected device fault.
type Handler func(args []string) (*string, error)

// Command binds one compiled match pattern to its handler.
type Command struct {
	Pattern *regexp.Regexp
	Handler Handler
}

// CommandSet is an ordered list of command bindings. A set is populated once
// at instrument construction time and read-only afterwards; dispatch walks it
// in registration order and the first matching pattern wins. Overlapping
// patterns must therefore be registered most-specific-first.
type CommandSet struct {
	commands []Command
}

// NewCommandSet creates an empty command set
func NewCommandSet() *CommandSet {
	return &CommandSet{}
}

// Register compiles pattern case-insensitively and appends it to the set.
// Patterns are hand-written constants, so a malformed one is a programming
// error and panics at construction time.
func (cs *CommandSet) Register(pattern string, handler Handler) {
	cs.commands = append(cs.commands, Command{
		Pattern: regexp.MustCompile("(?i)" + pattern),
		Handler: handler,
	})
}

// RegisterCaseSensitive appends a pattern that matches with exact case
func (cs *CommandSet) RegisterCaseSensitive(pattern string, handler Handler) {
	cs.commands = append(cs.commands, Command{
		Pattern: regexp.MustCompile(pattern),
		Handler: handler,
	})
}

// Include appends every command of other to this set, preserving order. This
// is the explicit, single-level form of command inheritance: an instrument
// aggregates the sets of the mixins it wants instead of walking an ancestor
// chain at runtime.
func (cs *CommandSet) Include(other *CommandSet) {
	cs.commands = append(cs.commands, other.commands...)
}

// Len returns the number of registered commands
func (cs *CommandSet) Len() int {
	return len(cs.commands)
}

// resolved returns a snapshot of the bindings for an instrument session
func (cs *CommandSet) resolved() []Command {
	out := make([]Command, len(cs.commands))
	copy(out, cs.commands)
	return out
}

// Response wraps a response string for a query handler return value
func Response(s string) *string {
	return &s
}
