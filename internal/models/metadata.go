package models

// UniversalTitle holds the titles a metadata provider knows for a show
type UniversalTitle struct {
	Romaji  *string `json:"romaji,omitempty"`
	English *string `json:"english,omitempty"`
	Native  *string `json:"native,omitempty"`
}

// UniversalCoverImage holds cover image URLs in increasing size
type UniversalCoverImage struct {
	Large      *string `json:"large,omitempty"`
	ExtraLarge *string `json:"extraLarge,omitempty"`
}

// UniversalCharacter is a character with its voice actor
type UniversalCharacter struct {
	Name       string  `json:"name"`
	VoiceActor *string `json:"voiceActor,omitempty"`
	Role       *string `json:"role,omitempty"`
}

// UniversalStaff is a staff member credit
type UniversalStaff struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department *string `json:"department,omitempty"`
}

// UniversalEpisode is one entry of the episode list
type UniversalEpisode struct {
	Number   int     `json:"number"`
	Title    *string `json:"title,omitempty"`
	AirDate  *string `json:"airDate,omitempty"`
	Overview *string `json:"overview,omitempty"`
	Runtime  *int    `json:"runtime,omitempty"`
}

// UnifiedMetadata is the extended per-title metadata resolved by the backend
type UnifiedMetadata struct {
	ID            string               `json:"id"`
	Title         UniversalTitle       `json:"title"`
	CoverImage    UniversalCoverImage  `json:"coverImage"`
	AverageScore  *int                 `json:"averageScore,omitempty"`
	Episodes      *int                 `json:"episodes,omitempty"`
	Genres        []string             `json:"genres"`
	Description   *string              `json:"description,omitempty"`
	Studios       []string             `json:"studios"`
	Characters    []UniversalCharacter `json:"characters"`
	Staff         []UniversalStaff     `json:"staff"`
	EpisodesList  []UniversalEpisode   `json:"episodesList"`
	IsFinished    bool                 `json:"isFinished"`
	TotalSeasons  *int                 `json:"totalSeasons,omitempty"`
	CurrentSeason *int                 `json:"currentSeason,omitempty"`
	Runtime       *int                 `json:"runtime,omitempty"`
	ContentRating *string              `json:"contentRating,omitempty"`
}

// CoverURL returns the largest available cover image
func (m *UnifiedMetadata) CoverURL() string {
	if m == nil {
		return ""
	}
	if m.CoverImage.ExtraLarge != nil && *m.CoverImage.ExtraLarge != "" {
		return *m.CoverImage.ExtraLarge
	}
	if m.CoverImage.Large != nil {
		return *m.CoverImage.Large
	}
	return ""
}

// Score returns the average score, or 0 when unknown
func (m *UnifiedMetadata) Score() int {
	if m == nil || m.AverageScore == nil {
		return 0
	}
	return *m.AverageScore
}

// TopGenres returns at most n genres
func (m *UnifiedMetadata) TopGenres(n int) []string {
	if m == nil {
		return nil
	}
	if len(m.Genres) <= n {
		return m.Genres
	}
	return m.Genres[:n]
}
