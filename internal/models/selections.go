package models

import (
	"strings"
	"time"
)

// Season is a selectable broadcast season
type Season string

const (
	SeasonAll    Season = "all"
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonAutumn Season = "Autumn"
)

// SiteAll is the site selection sentinel that disables site filtering
const SiteAll = "all"

// Seasons lists the selectable seasons in display order
var Seasons = []Season{SeasonAll, SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}

// Valid reports whether s is one of the selectable seasons
func (s Season) Valid() bool {
	for _, v := range Seasons {
		if v == s {
			return true
		}
	}
	return false
}

// ParseSeason returns the selectable season matching s regardless of case
func ParseSeason(s string) (Season, bool) {
	for _, v := range Seasons {
		if strings.EqualFold(string(v), s) {
			return v, true
		}
	}
	return "", false
}

// Selections is the user's persisted year/season/site filter choice
type Selections struct {
	Year   string `json:"year"`
	Season string `json:"season"`
	Site   string `json:"site"`
}

// SelectionRecord stores a serialized Selections blob under a storage key
type SelectionRecord struct {
	Key       string    `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for SelectionRecord
func (SelectionRecord) TableName() string {
	return "selections"
}
