package salvage

import (
	"errors"
	"fmt"

	"github.com/vinpix/vinpix/internal/model"
)

// Kind classifies an adapter failure. The resolver decides whether to
// continue the chain, notify the user, or stop based on this value alone,
// so every error leaving an adapter must carry one.
type Kind int

const (
	// KindValidation marks bad input rejected before any network call.
	KindValidation Kind = iota
	// KindNoResults means the site answered and has no matching vehicle.
	KindNoResults
	// KindAmbiguous means the site returned more matches than the sanity
	// threshold allows; picking one would risk the wrong vehicle.
	KindAmbiguous
	// KindBotChallenge means the site presented a CAPTCHA or equivalent and
	// the user must intervene manually.
	KindBotChallenge
	// KindServer covers upstream 5xx and transport failures.
	KindServer
	// KindParse means the response shape was unexpected; usually the site
	// markup or API changed.
	KindParse
	// KindConversion marks pixel-processing failures.
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNoResults:
		return "no_results"
	case KindAmbiguous:
		return "ambiguous"
	case KindBotChallenge:
		return "bot_challenge"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	case KindConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

// Error is the structured adapter error. Adapters classify everything at
// their boundary; raw transport or parse errors never cross the resolver.
type Error struct {
	Kind   Kind
	Site   model.Source
	Stage  string // "search", "scrape", "image-info", "token", ...
	Status int    // HTTP status when one was observed, else 0
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Site, e.Stage, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds an Error for site/stage with the given kind.
func newErr(kind Kind, site model.Source, stage string, err error) *Error {
	return &Error{Kind: kind, Site: site, Stage: stage, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindServer for errors
// that did not originate in an adapter.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindServer
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
