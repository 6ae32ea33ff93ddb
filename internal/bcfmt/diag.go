// Package bcfmt provides shared types and diagnostics for bytecode verification.
package bcfmt

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagStructural   DiagKind = "structural"   // malformed stream, bad jump, unterminated block
	DiagLinkage      DiagKind = "linkage"      // unresolvable class/method/field
	DiagTyping       DiagKind = "typing"       // operand types violate the lattice rules
	DiagReachability DiagKind = "reachability" // entry points without derivable context
	DiagSkipped      DiagKind = "skipped"      // whitelisted, not verified
)

// Fatal reports whether a diagnostic of this kind fails the method.
func (k DiagKind) Fatal() bool {
	switch k {
	case DiagStructural, DiagLinkage, DiagTyping:
		return true
	}
	return false
}

// Diag records one issue found while verifying a method.
type Diag struct {
	Offset int      `json:"offset"`
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	if d.Offset < 0 {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Offset, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(offset int, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(offset int, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Has reports whether any diagnostic of the given kind was recorded.
func (d *Diags) Has(kind DiagKind) bool {
	for _, it := range d.items {
		if it.Kind == kind {
			return true
		}
	}
	return false
}

// Options controls decoding and interpretation limits across packages.
type Options struct {
	MaxSteps int // interpreter step cap per method; 0 = use default
}

// DefaultMaxSteps is the global default loop cap.
const DefaultMaxSteps = 10_000_000

func (o Options) EffectiveMaxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return DefaultMaxSteps
}
