package search

import (
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Meta queries several providers concurrently and merges their results in
// provider order. It fails only when every provider fails; partial failures
// are logged and the surviving results returned.
type Meta struct {
	Providers []Provider
}

func NewMeta(providers ...Provider) *Meta {
	return &Meta{Providers: providers}
}

func (m *Meta) Name() string {
	names := make([]string, 0, len(m.Providers))
	for _, p := range m.Providers {
		names = append(names, p.Name())
	}
	return "meta(" + strings.Join(names, ",") + ")"
}

func (m *Meta) Search(ctx context.Context, req Request) ([]Result, error) {
	if len(m.Providers) == 0 {
		return nil, errors.New("meta search has no providers")
	}

	groups := make([][]Result, len(m.Providers))
	var errLock sync.Mutex
	var aggregatedErr error
	failed := 0

	var wg sync.WaitGroup
	wg.Add(len(m.Providers))
	for i, p := range m.Providers {
		go func(i int, provider Provider) {
			defer wg.Done()
			results, err := provider.Search(ctx, req)
			if err != nil {
				errLock.Lock()
				aggregatedErr = multierror.Append(aggregatedErr, errors.Wrap(err, provider.Name()))
				failed++
				errLock.Unlock()
				return
			}
			groups[i] = results
		}(i, p)
	}
	wg.Wait()

	if failed == len(m.Providers) {
		return nil, aggregatedErr
	}
	if aggregatedErr != nil {
		log.Warn().Err(aggregatedErr).Int("failed", failed).Msg("some search providers failed")
	}

	var merged []Result
	for _, g := range groups {
		merged = append(merged, g...)
	}
	return finalize(merged, req), nil
}

var _ Provider = &Meta{}
