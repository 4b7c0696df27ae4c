// Package resolver orchestrates the site adapters: each enabled adapter is
// tried in a fixed priority order (primary yards before archives) until one
// yields a usable listing record.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/bus"
	"github.com/vinpix/vinpix/internal/model"
	"github.com/vinpix/vinpix/internal/salvage"
)

// Attempt records how one adapter's try ended, for diagnostics when the
// whole chain fails.
type Attempt struct {
	Site model.Source
	Kind salvage.Kind
	Err  error
}

// ChainError aggregates the per-adapter failures of an exhausted chain.
type ChainError struct {
	Vin      model.Vin
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Site, a.Kind))
	}
	return fmt.Sprintf("no site matched vin %s (%s)", e.Vin, strings.Join(parts, ", "))
}

// prettyNames for user-facing notifications.
var prettyNames = map[model.Source]string{
	model.SourceCopart: "Copart",
	model.SourceIAAI:   "IAAI",
	model.SourcePoctra: "Poctra",
	model.SourceBidfax: "BidFax",
}

// Resolver runs the fallback chain. Adapters execute strictly one at a
// time; an adapter's attempt fully settles (success or classified failure)
// before the next begins, so side effects like challenge tabs never
// overlap.
type Resolver struct {
	adapters       []salvage.Adapter
	adapterTimeout time.Duration
	notifier       bus.Notifier
	logger         *zap.Logger

	// Enabled gates adapters by the per-site settings flags. Nil means
	// all sites enabled.
	Enabled func(model.Source) bool
}

// New creates a Resolver over the given adapters. Order is priority order.
func New(adapters []salvage.Adapter, adapterTimeout time.Duration, notifier bus.Notifier, logger *zap.Logger) *Resolver {
	if notifier == nil {
		notifier = bus.NopNotifier{}
	}
	return &Resolver{
		adapters:       adapters,
		adapterTimeout: adapterTimeout,
		notifier:       notifier,
		logger:         logger,
	}
}

// Resolve walks the chain for one VIN. The returned record comes from the
// first adapter that succeeds; results are never reconciled across
// adapters. When every adapter fails, a *ChainError aggregates the
// classified outcomes.
func (r *Resolver) Resolve(ctx context.Context, vin model.Vin) (*model.ListingRecord, error) {
	notify := bus.NewUntilSuccess(r.notifier)
	var attempts []Attempt

	for _, adapter := range r.adapters {
		site := adapter.Source()
		if r.Enabled != nil && !r.Enabled(site) {
			r.logger.Debug("site disabled in settings", zap.String("site", string(site)))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.attempt(ctx, adapter, vin)
		if err == nil {
			notify.Notify(prettyNames[site]+": found a match!", bus.DisplaySuccess)
			r.logger.Info("vin resolved",
				zap.String("vin", vin.String()),
				zap.String("site", string(site)),
				zap.String("lot", rec.LotNumber),
			)
			return rec, nil
		}

		kind := salvage.KindOf(err)
		attempts = append(attempts, Attempt{Site: site, Kind: kind, Err: err})
		r.logger.Debug("adapter attempt failed",
			zap.String("site", string(site)),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)

		switch kind {
		case salvage.KindNoResults, salvage.KindParse, salvage.KindAmbiguous:
			// Continue silently; the next adapter may still hit.
		case salvage.KindBotChallenge:
			notify.Notify(
				prettyNames[site]+": blocked by a CAPTCHA check. Please complete it on the site and search again.",
				bus.DisplayStatus,
			)
		default:
			notify.Notify(
				prettyNames[site]+": something went wrong on their end.",
				bus.DisplayStatus,
			)
		}
	}

	notify.Notify("Search complete. No results found.", bus.DisplayError)
	return nil, &ChainError{Vin: vin, Attempts: attempts}
}

// attempt runs one adapter under the per-adapter timeout and validates
// the record it returns.
func (r *Resolver) attempt(ctx context.Context, adapter salvage.Adapter, vin model.Vin) (*model.ListingRecord, error) {
	actx := ctx
	if r.adapterTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.adapterTimeout)
		defer cancel()
	}

	rec, err := adapter.Search(actx, vin)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &salvage.Error{
				Kind: salvage.KindServer, Site: adapter.Source(), Stage: "search", Err: err,
			}
		}
		return nil, err
	}
	if !rec.Usable() {
		return nil, &salvage.Error{
			Kind: salvage.KindParse, Site: adapter.Source(), Stage: "search",
			Err: fmt.Errorf("adapter returned an unusable record"),
		}
	}
	return rec, nil
}
