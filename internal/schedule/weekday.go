package schedule

import (
	"sort"
	"strings"
	"time"

	"github.com/glefebvre/housou/internal/models"
)

const (
	// BucketCount is the number of weekday tabs: Sunday through Saturday plus unknown
	BucketCount = 8
	// UnknownDay holds items without a usable begin timestamp
	UnknownDay = 7
)

// WeekdayLabels are the tab labels, indexed like the buckets
var WeekdayLabels = [BucketCount]string{"日", "月", "火", "水", "木", "金", "土", "他"}

// WeekdayNames are the English tab names used by the terminal renderer
var WeekdayNames = [BucketCount]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Other"}

// Buckets is the weekday grouping of a season
type Buckets [BucketCount][]models.AnimeItem

// Total returns the number of items across all buckets
func (b Buckets) Total() int {
	n := 0
	for _, bucket := range b {
		n += len(bucket)
	}
	return n
}

var (
	// accepted with an explicit offset or Z
	zonedLayouts = []string{time.RFC3339}
	// wall-clock times without an offset are read in the viewer's zone
	localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"}
	// date-only values are midnight UTC
	dateLayouts = []string{"2006-01-02"}
)

// ParseBegin parses a broadcast timestamp. It reports false for empty or malformed values.
func ParseBegin(begin string, loc *time.Location) (time.Time, bool) {
	begin = strings.TrimSpace(begin)
	if begin == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, begin); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, begin, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, begin, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayIndex returns the bucket an item belongs to and its sort key in milliseconds.
// Items without a parseable begin go to UnknownDay with key 0.
func DayIndex(item models.AnimeItem, loc *time.Location) (int, int64) {
	t, ok := ParseBegin(item.Begin, loc)
	if !ok {
		return UnknownDay, 0
	}
	if loc == nil {
		loc = time.Local
	}
	return int(t.In(loc).Weekday()), t.UnixMilli()
}

type keyedItem struct {
	item models.AnimeItem
	key  int64
}

// GroupByWeekday buckets items by the weekday of their begin timestamp in loc.
// Every bucket is non-nil and ordered by ascending timestamp; ties keep input order.
func GroupByWeekday(items []models.AnimeItem, loc *time.Location) Buckets {
	var keyed [BucketCount][]keyedItem
	for _, item := range items {
		day, key := DayIndex(item, loc)
		keyed[day] = append(keyed[day], keyedItem{item: item, key: key})
	}

	var out Buckets
	for day := range keyed {
		group := keyed[day]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].key < group[j].key
		})

		out[day] = make([]models.AnimeItem, len(group))
		for i, k := range group {
			out[day][i] = k.item
		}
	}
	return out
}

// CurrentDayTab returns the tab opened by default: today's weekday in loc
func CurrentDayTab(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return int(now.In(loc).Weekday())
}

// ParseDay accepts a tab index, a Japanese label or an English day name
func ParseDay(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 1 && s[0] >= '0' && s[0] <= '7' {
		return int(s[0] - '0'), true
	}
	for i := 0; i < BucketCount; i++ {
		if s == WeekdayLabels[i] || strings.EqualFold(s, WeekdayNames[i]) {
			return i, true
		}
	}
	if len(s) >= 3 {
		for i := 0; i < UnknownDay; i++ {
			if strings.EqualFold(s[:3], WeekdayNames[i]) {
				return i, true
			}
		}
	}
	return 0, false
}
