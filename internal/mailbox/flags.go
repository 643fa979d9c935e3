package mailbox

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// Flag is a message flag as supplied by a caller, together with its cached
// canonical wire form. Callers pass flags in whatever shape they have
// ("Seen", "\Seen", "\\Seen"); the canonical form always carries exactly one
// leading backslash.
type Flag struct {
	raw       string
	canonical imap.Flag
}

// NormalizeFlag builds a Flag from a caller-supplied name.
func NormalizeFlag(raw string) Flag {
	clean := strings.TrimLeft(strings.TrimSpace(raw), `\`)
	return Flag{raw: raw, canonical: imap.Flag(`\` + clean)}
}

// NormalizeFlags normalizes a list of caller-supplied flag names.
func NormalizeFlags(raw []string) []Flag {
	flags := make([]Flag, len(raw))
	for i, r := range raw {
		flags[i] = NormalizeFlag(r)
	}
	return flags
}

// Raw returns the flag as the caller supplied it.
func (f Flag) Raw() string { return f.raw }

// Canonical returns the wire form of the flag.
func (f Flag) Canonical() imap.Flag { return f.canonical }

// FlagOp selects the STORE variant used by ModifyFlags.
type FlagOp string

const (
	FlagOpAdd     FlagOp = "add"
	FlagOpRemove  FlagOp = "remove"
	FlagOpReplace FlagOp = "replace"
)

// storeFlags translates a flag operation into the go-imap STORE arguments
// (+FLAGS, -FLAGS or FLAGS, each with an optional .SILENT suffix).
func storeFlags(flags []Flag, op FlagOp, silent bool) (*imap.StoreFlags, error) {
	var storeOp imap.StoreFlagsOp
	switch op {
	case FlagOpAdd:
		storeOp = imap.StoreFlagsAdd
	case FlagOpRemove:
		storeOp = imap.StoreFlagsDel
	case FlagOpReplace:
		storeOp = imap.StoreFlagsSet
	default:
		return nil, fmt.Errorf("invalid flag operation: %q", op)
	}
	canonical := make([]imap.Flag, len(flags))
	for i, f := range flags {
		canonical[i] = f.Canonical()
	}
	return &imap.StoreFlags{Op: storeOp, Silent: silent, Flags: canonical}, nil
}
