package models

// ModeKind is the conversational state of a user.
type ModeKind string

const (
	ModeIdle        ModeKind = "idle"
	ModeTranslating ModeKind = "translating"
)

// Mode is the per-user conversational mode. Engine is only meaningful while
// translating and names the provider route chosen at activation; empty means
// the default engine.
type Mode struct {
	Kind   ModeKind `json:"kind"`
	Engine string   `json:"engine,omitempty"`
}

// Idle returns the general-purpose mode.
func Idle() Mode {
	return Mode{Kind: ModeIdle}
}

// Translating returns the translation mode bound to engine.
func Translating(engine string) Mode {
	return Mode{Kind: ModeTranslating, Engine: engine}
}

// IsTranslating reports whether m is the translation mode.
func (m Mode) IsTranslating() bool {
	return m.Kind == ModeTranslating
}

func (m Mode) String() string {
	if m.Kind == "" {
		return string(ModeIdle)
	}
	if m.Engine != "" {
		return string(m.Kind) + "(" + m.Engine + ")"
	}
	return string(m.Kind)
}
