package derivative

import (
	"context"
	"sync"
	"time"

	"gallerysvc/internal/dedup"
)

// DefaultPregenerateConcurrency bounds how many variant generations run at
// once during a bulk pregenerate pass, matching the bounded worker pool the
// system this pipeline reimplements uses for the same job.
const DefaultPregenerateConcurrency = 4

// Variant describes one derivative to produce during pregeneration.
type Variant struct {
	RelPath       string
	SizeToken     string
	FormatExt     string
	Watermark     bool
	SourceModTime time.Time
}

// Generator produces the encoded bytes for a single variant. Implementations
// do the actual decode/resize/encode work; Pregenerate only handles caching,
// deduplication and concurrency bounding.
type Generator func(ctx context.Context, v Variant) ([]byte, error)

// Pregenerator drives bulk derivative generation across many variants with a
// bounded worker count and in-flight request collapsing, so concurrently
// requested identical variants are only computed once.
type Pregenerator struct {
	cache       *Cache
	concurrency int
	group       *dedup.Group
}

// NewPregenerator returns a Pregenerator writing into cache. concurrency <= 0
// selects DefaultPregenerateConcurrency.
func NewPregenerator(cache *Cache, concurrency int) *Pregenerator {
	if concurrency <= 0 {
		concurrency = DefaultPregenerateConcurrency
	}
	return &Pregenerator{cache: cache, concurrency: concurrency, group: dedup.NewGroup()}
}

// Result reports the outcome of generating a single variant.
type Result struct {
	Variant Variant
	Err     error
}

// Run generates every variant in variants, skipping ones already cached,
// bounded by the pregenerator's concurrency, and returns one Result per
// variant, in the same order as variants. It stops launching new work once ctx
// is done but lets in-flight generations finish.
func (p *Pregenerator) Run(ctx context.Context, variants []Variant, gen Generator) []Result {
	sem := make(chan struct{}, p.concurrency)
	results := make([]Result, len(variants))

	var wg sync.WaitGroup
	for i, v := range variants {
		i, v := i, v

		key := Key(v.RelPath, v.SizeToken, v.FormatExt, WatermarkToken(v.Watermark))
		if _, ok := p.cache.Lookup(key, v.FormatExt, v.SourceModTime); ok {
			results[i] = Result{Variant: v}
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = Result{Variant: v, Err: ctx.Err()}
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := p.group.Do(key, func() ([]byte, error) {
				data, err := gen(ctx, v)
				if err != nil {
					return nil, err
				}
				if err := p.cache.Store(key, v.FormatExt, data); err != nil {
					return nil, err
				}
				return data, nil
			})
			results[i] = Result{Variant: v, Err: err}
		}()
	}
	wg.Wait()
	return results
}
