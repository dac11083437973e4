package engine

import (
	"fmt"
	"strings"

	"github.com/neartask/veritas/internal/reputation"
)

// References holds the collaborator canister identifiers the engine needs
// for cross-service addressing. They are opaque handles here; veritas never
// dereferences them itself.
type References struct {
	Auth    string `json:"auth"`
	Booking string `json:"booking"`
	Review  string `json:"review"`
	Service string `json:"service"`
}

// SetCanisterReferences validates and stores the collaborator identifiers.
// Returns a confirmation message naming what was wired.
func (e *Engine) SetCanisterReferences(refs References) (string, error) {
	for _, ref := range []struct {
		name  string
		value string
	}{
		{"auth", refs.Auth},
		{"booking", refs.Booking},
		{"review", refs.Review},
		{"service", refs.Service},
	} {
		if err := validateReference(ref.value); err != nil {
			return "", fmt.Errorf("%w: %s canister: %v", reputation.ErrReferenceInvalid, ref.name, err)
		}
	}

	e.refMu.Lock()
	e.refs = refs
	e.refMu.Unlock()

	e.logger.Info("canister references set",
		"auth", refs.Auth,
		"booking", refs.Booking,
		"review", refs.Review,
		"service", refs.Service,
	)
	return "canister references set: auth, booking, review, service", nil
}

// CanisterReferences returns the stored collaborator identifiers.
func (e *Engine) CanisterReferences() References {
	e.refMu.RLock()
	defer e.refMu.RUnlock()
	return e.refs
}

func validateReference(ref string) error {
	if ref == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsAny(ref, " \t\n") {
		return fmt.Errorf("identifier contains whitespace")
	}
	return nil
}
