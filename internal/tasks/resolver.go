package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	// SmallBatchSize is the largest batch resolved one item at a time.
	SmallBatchSize = 5
	// DefaultLookupTimeout bounds a single catalog lookup.
	DefaultLookupTimeout = 30 * time.Second
)

// ResolveStrategy selects how a batch of lookups is issued.
type ResolveStrategy int

const (
	ResolveIndividual ResolveStrategy = iota // Small batch, one at a time
	ResolveSequential                        // Shared service, strictly in order behind the limiter
	ResolveConcurrent                        // Private mirror, bounded pool
)

func (s ResolveStrategy) String() string {
	switch s {
	case ResolveIndividual:
		return "individual"
	case ResolveSequential:
		return "sequential"
	case ResolveConcurrent:
		return "concurrent"
	default:
		return ""
	}
}

func (s ResolveStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SelectStrategy picks the strategy for a batch of n references.
//
// A shared service never gets the concurrent strategy.
func SelectStrategy(n int, shared bool) ResolveStrategy {
	switch {
	case n <= SmallBatchSize:
		return ResolveIndividual
	case shared:
		return ResolveSequential
	default:
		return ResolveConcurrent
	}
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Limiter   RateLimiter   // Consulted before every lookup against a shared catalog
	PoolWidth int           // Concurrent lookups against a mirror, capped at [shared.MaxMirrorConcurrency]
	Timeout   time.Duration // Per-lookup timeout
	Logger    *log.Logger
}

// Resolver turns recording references into artist resolutions.
type Resolver struct {
	catalog services.Catalog
	limiter RateLimiter
	width   int
	timeout time.Duration
	logger  *log.Logger
}

// NewResolver creates a Resolver over catalog.
//
// Without a limiter, a shared catalog gets a fresh [DefaultCatalogInterval] limiter; callers
// resolving against the same service from several places should pass one shared limiter.
func NewResolver(catalog services.Catalog, opts ResolverOpts) *Resolver {
	r := &Resolver{
		catalog: catalog,
		limiter: opts.Limiter,
		width:   opts.PoolWidth,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}

	if r.limiter == nil {
		if catalog.Shared() {
			r.limiter = NewCatalogLimiter(DefaultCatalogInterval)
		} else {
			r.limiter = NoopLimiter{}
		}
	}
	if r.width <= 0 || r.width > shared.MaxMirrorConcurrency {
		r.width = shared.MaxMirrorConcurrency
	}
	if r.timeout <= 0 {
		r.timeout = DefaultLookupTimeout
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Strategy returns the strategy a batch of n distinct references would use.
func (r *Resolver) Strategy(n int) ResolveStrategy {
	return SelectStrategy(n, r.catalog.Shared())
}

// Resolve looks up every distinct reference in refs.
//
// Every distinct reference gets a key; failed lookups map to null resolutions. Once ctx is done
// no new lookup starts and the remaining references resolve to null with ctx's error.
func (r *Resolver) Resolve(ctx context.Context, refs []string) Resolutions {
	refs = uniqueRefs(refs)
	strategy := r.Strategy(len(refs))

	r.logger.Debug("resolving recordings", "catalog", r.catalog.Name(), "count", len(refs), "strategy", strategy)

	var out Resolutions
	switch strategy {
	case ResolveConcurrent:
		out = r.resolveConcurrent(ctx, refs)
	case ResolveSequential:
		out = r.resolveSequential(ctx, refs, true)
	default:
		out = r.resolveSequential(ctx, refs, r.catalog.Shared())
	}

	c := out.Counts()
	r.logger.Info("resolved recordings", "catalog", r.catalog.Name(), "strategy", strategy, "resolved", c.Succeeded, "failed", c.Failed)
	return out
}

func (r *Resolver) resolveSequential(ctx context.Context, refs []string, limited bool) Resolutions {
	out := make(Resolutions, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			out[ref] = ArtistResolution{Ref: ref, Err: err}
			continue
		}
		if limited {
			if err := r.limiter.Wait(ctx); err != nil {
				out[ref] = ArtistResolution{Ref: ref, Err: err}
				continue
			}
		}
		out[ref] = r.lookup(ctx, ref)
	}
	return out
}

func (r *Resolver) resolveConcurrent(ctx context.Context, refs []string) Resolutions {
	var mu sync.Mutex
	out := make(Resolutions, len(refs))
	set := func(res ArtistResolution) {
		mu.Lock()
		out[res.Ref] = res
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.width)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			set(ArtistResolution{Ref: ref, Err: err})
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				set(ArtistResolution{Ref: ref, Err: err})
				return nil
			}
			set(r.lookup(ctx, ref))
			return nil
		})
	}

	// Lookups never return errors; failures are recorded as null resolutions.
	_ = g.Wait()
	return out
}

func (r *Resolver) lookup(ctx context.Context, ref string) ArtistResolution {
	lctx, cancel := detach(ctx, r.timeout)
	defer cancel()

	rec, err := r.catalog.Recording(lctx, ref)
	if err == nil && (rec == nil || rec.ArtistID == "") {
		err = fmt.Errorf("%w: %s", shared.ErrNoArtistCredit, ref)
	}
	if err != nil {
		r.logger.Warn("recording lookup failed", "ref", ref, "err", err)
		return ArtistResolution{Ref: ref, Err: err}
	}

	return ArtistResolution{
		Ref:        ref,
		ArtistID:   rec.ArtistID,
		ArtistName: rec.ArtistName,
		TrackTitle: rec.Title,
	}
}
