package redirect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/registry"
)

// Step names reported in Target.Step.
const (
	StepRegistry     = "registry"
	StepPathOverride = "path-override"
	StepDefault      = "default"
)

// DefaultURL is the last-resort navigation target.
const DefaultURL = "https://www.guc.edu.kg/"

// DefaultOverridePrefix marks paths that carry an explicit target.
const DefaultOverridePrefix = "/s/"

// Step is one link of the resolution chain.
type Step interface {
	Name() string
	// Resolve returns the target URL and true on a match. An error means the
	// step could not decide and the chain moves on.
	Resolve(ctx context.Context, path string) (string, bool, error)
}

// Lookup lists registry entries.
type Lookup interface {
	Websites(ctx context.Context) ([]registry.Website, error)
}

// RegistryStep matches the first path segment against registry names.
type RegistryStep struct {
	lookup Lookup
	logger *zap.Logger
}

// NewRegistryStep builds the registry step.
func NewRegistryStep(lookup Lookup, logger *zap.Logger) *RegistryStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryStep{lookup: lookup, logger: logger}
}

// Name implements Step.
func (s *RegistryStep) Name() string { return StepRegistry }

// Resolve implements Step. Paths without a segment never hit the network.
func (s *RegistryStep) Resolve(ctx context.Context, path string) (string, bool, error) {
	segment, err := FirstSegment(path)
	if err != nil {
		return "", false, err
	}
	if segment == "" {
		return "", false, nil
	}
	if s.lookup == nil {
		return "", false, fmt.Errorf("registry lookup is not configured")
	}
	sites, err := s.lookup.Websites(ctx)
	if err != nil {
		return "", false, err
	}
	for _, site := range sites {
		if site.Name != segment {
			continue
		}
		target := strings.TrimSpace(site.URL)
		if !isAbsoluteURL(target) {
			s.logger.Warn("skipping registry entry with invalid url",
				zap.String("name", site.Name),
				zap.String("url", site.URL),
			)
			continue
		}
		s.logger.Info("registry entry matched", zap.String("name", site.Name), zap.String("target", target))
		return target, true, nil
	}
	return "", false, nil
}

// FirstSegment returns the first non-empty segment of an escaped path,
// percent-decoded.
func FirstSegment(path string) (string, error) {
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		decoded, err := url.PathUnescape(part)
		if err != nil {
			return "", fmt.Errorf("decode path segment %q: %w", part, err)
		}
		return decoded, nil
	}
	return "", nil
}

func isAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// PathOverrideStep navigates to whatever follows the override prefix.
type PathOverrideStep struct {
	prefix string
}

// NewPathOverrideStep builds the override step; an empty prefix means "/s/".
func NewPathOverrideStep(prefix string) *PathOverrideStep {
	if prefix == "" {
		prefix = DefaultOverridePrefix
	}
	return &PathOverrideStep{prefix: prefix}
}

// Name implements Step.
func (s *PathOverrideStep) Name() string { return StepPathOverride }

// Resolve implements Step. The remainder is used verbatim.
func (s *PathOverrideStep) Resolve(_ context.Context, path string) (string, bool, error) {
	rest, ok := strings.CutPrefix(path, s.prefix)
	if !ok || rest == "" {
		return "", false, nil
	}
	if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
		return rest, true, nil
	}
	return "https://" + rest, true, nil
}

// DefaultStep always matches.
type DefaultStep struct {
	url string
}

// NewDefaultStep builds the fallback step; an empty URL means DefaultURL.
func NewDefaultStep(target string) *DefaultStep {
	if target == "" {
		target = DefaultURL
	}
	return &DefaultStep{url: target}
}

// Name implements Step.
func (s *DefaultStep) Name() string { return StepDefault }

// Resolve implements Step.
func (s *DefaultStep) Resolve(context.Context, string) (string, bool, error) {
	return s.url, true, nil
}
