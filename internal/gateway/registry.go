package gateway

import (
	"fmt"

	"github.com/calderapay/connector/pkg/enums"
)

// Registry resolves the submitter for a charge's payment provider.
type Registry struct {
	submitters map[enums.PaymentProvider]Submitter
}

// NewRegistry indexes the provided submitters by provider. A nil submitter is
// skipped so partially configured environments can still serve the rest.
func NewRegistry(submitters ...Submitter) *Registry {
	indexed := map[enums.PaymentProvider]Submitter{}
	for _, submitter := range submitters {
		if submitter == nil {
			continue
		}
		indexed[submitter.Provider()] = submitter
	}
	return &Registry{submitters: indexed}
}

// Get returns the submitter for the provider.
func (r *Registry) Get(provider enums.PaymentProvider) (Submitter, error) {
	submitter, ok := r.submitters[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway submitter configured for provider %s", provider)
	}
	return submitter, nil
}
