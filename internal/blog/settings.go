package blog

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Settings returns the stored site settings, or the defaults when none have
// been saved. Reading never creates the row.
func (s *Service) Settings(ctx context.Context) (*Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		s.recordError(nil, err, "loading settings")
		return nil, eris.Wrap(err, "loading settings")
	}
	if settings == nil {
		defaults := DefaultSettings()
		return &defaults, nil
	}
	return settings, nil
}

// UpdateSettings applies a partial settings update. The first update creates
// the row, seeding omitted fields with minimal values rather than the read defaults.
func (s *Service) UpdateSettings(ctx context.Context, input SettingsInput) (*Settings, error) {
	if input.Categories == nil && input.SiteName == nil && input.SiteDescription == nil {
		return nil, eris.Wrap(ErrNoFields, "updating settings")
	}

	current, err := s.repo.GetSettings(ctx)
	if err != nil {
		s.recordError(nil, err, "loading settings")
		return nil, eris.Wrap(err, "loading settings")
	}
	if current == nil {
		seed := initialSettings()
		current = &seed
	}

	if input.Categories != nil {
		current.Categories = dedupe(cleanList(*input.Categories))
	}
	if input.SiteName != nil {
		current.SiteName = strings.TrimSpace(*input.SiteName)
	}
	if input.SiteDescription != nil {
		current.SiteDescription = strings.TrimSpace(*input.SiteDescription)
	}

	if err := s.repo.SaveSettings(ctx, current); err != nil {
		s.recordError(nil, err, "saving settings")
		return nil, eris.Wrap(err, "saving settings")
	}

	return current, nil
}

func dedupe(values StringList) StringList {
	seen := make(map[string]bool, len(values))
	out := make(StringList, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
