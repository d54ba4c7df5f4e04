package normalizer

import (
	"context"
	"fmt"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/models"
)

// Service normalizes against any version of a dictionary catalog. One
// Normalizer is built per version up front and shared by all calls.
type Service struct {
	normalizers map[string]*Normalizer
}

// NewService builds a normalizer for every version in catalog
func NewService(catalog *dictionary.Catalog, mcfg matcher.Config, cfg Config, emitter Emitter, rec *metrics.Recorder) *Service {
	s := &Service{normalizers: make(map[string]*Normalizer)}
	for _, version := range catalog.Versions() {
		dict, err := catalog.Get(version)
		if err != nil {
			continue
		}
		s.normalizers[version] = New(matcher.New(dict, mcfg), emitter, rec, cfg)
	}
	return s
}

// Normalizer returns the normalizer for version
func (s *Service) Normalizer(version string) (*Normalizer, error) {
	n, ok := s.normalizers[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dictionary.ErrVersionNotFound, version)
	}
	return n, nil
}

// Normalize normalizes rec against version. An unknown version is the only error.
func (s *Service) Normalize(ctx context.Context, version string, rec Record) (Result, error) {
	n, err := s.Normalizer(version)
	if err != nil {
		return Result{}, err
	}
	return n.Normalize(ctx, rec), nil
}

// NormalizeBean normalizes bean against version
func (s *Service) NormalizeBean(ctx context.Context, version string, bean models.BeanInfo) (NormalizedBeanInfo, error) {
	n, err := s.Normalizer(version)
	if err != nil {
		return NormalizedBeanInfo{}, err
	}
	return n.NormalizeBean(ctx, bean), nil
}
