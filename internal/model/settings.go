package model

// Settings controls which sites the resolver consults during a search.
// A site that was never configured is treated as enabled.
type Settings struct {
	SearchCopart bool `json:"searchCopart"`
	SearchIaai   bool `json:"searchIaai"`
	SearchPoctra bool `json:"searchPoctra"`
	SearchBidfax bool `json:"searchBidfax"`
}

// DefaultSettings enables every site.
func DefaultSettings() Settings {
	return Settings{
		SearchCopart: true,
		SearchIaai:   true,
		SearchPoctra: true,
		SearchBidfax: true,
	}
}

// Enabled reports whether the given source should be consulted.
func (s Settings) Enabled(src Source) bool {
	switch src {
	case SourceCopart:
		return s.SearchCopart
	case SourceIAAI:
		return s.SearchIaai
	case SourcePoctra:
		return s.SearchPoctra
	case SourceBidfax:
		return s.SearchBidfax
	}
	return false
}

// SettingsPatch is a partial update: nil fields leave the stored value
// untouched. This mirrors how persisted records may predate newer flags —
// missing flags fall back to their defaults rather than being clobbered.
type SettingsPatch struct {
	SearchCopart *bool `json:"searchCopart,omitempty"`
	SearchIaai   *bool `json:"searchIaai,omitempty"`
	SearchPoctra *bool `json:"searchPoctra,omitempty"`
	SearchBidfax *bool `json:"searchBidfax,omitempty"`
}

// Apply overlays the patch onto base and returns the result.
func (p SettingsPatch) Apply(base Settings) Settings {
	if p.SearchCopart != nil {
		base.SearchCopart = *p.SearchCopart
	}
	if p.SearchIaai != nil {
		base.SearchIaai = *p.SearchIaai
	}
	if p.SearchPoctra != nil {
		base.SearchPoctra = *p.SearchPoctra
	}
	if p.SearchBidfax != nil {
		base.SearchBidfax = *p.SearchBidfax
	}
	return base
}
