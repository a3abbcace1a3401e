package model

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind discriminates the two entry variants stored in the `entries` table.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Valid reports whether k is a known entry kind.
func (k Kind) Valid() bool { return k == KindMovie || k == KindSeries }

// AiringStatus is the broadcast state of a series.
type AiringStatus string

const (
	StatusAiring   AiringStatus = "airing"
	StatusFinished AiringStatus = "finished"
)

// ParseAiringStatus normalizes user input ("Airing", " FINISHED ") into an
// AiringStatus.  The second result is false for values outside the enum.
func ParseAiringStatus(s string) (AiringStatus, bool) {
	switch AiringStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAiring:
		return StatusAiring, true
	case StatusFinished:
		return StatusFinished, true
	}
	return "", false
}

// MaxSeriesRating is the upper bound on a series rating.  Movies have no
// upper bound.
const MaxSeriesRating = 10

// Column sizes of the `entries` table.  Text limits count characters,
// except Description which is a TEXT column limited in bytes.
const (
	MaxNameLength        = 255 // title, director, location
	MaxShortTextLength   = 64  // duration, yearOrTime
	MaxGenreLength       = 128
	MaxDescriptionLength = 65535
	MaxTotalSeasons      = math.MaxInt32
)

// Entry represents a movie or TV series tracked by a single user.  It
// corresponds to a row in the `entries` table.
//
// Fields:
//
//	ID           – opaque identifier generated on insert (UUID string).
//	Kind         – movie or series; fixed at creation.
//	Owner        – users.id of the creator; fixed at creation.
//	Duration     – required for movies, optional for series.
//	Rating       – defaults to 0; bounded to [0,10] for series only.
//	AiringStatus – series only.
//	TotalSeasons – series only, at least 1.
type Entry struct {
	ID           string       `json:"_id"`
	Kind         Kind         `json:"type"`
	Owner        string       `json:"owner"`
	Title        string       `json:"title"`
	Director     string       `json:"director"`
	Budget       float64      `json:"budget"`
	Location     string       `json:"location"`
	Duration     string       `json:"duration,omitempty"`
	YearOrTime   string       `json:"yearOrTime"`
	Genre        string       `json:"genre"`
	Rating       float64      `json:"rating"`
	Description  string       `json:"description,omitempty"`
	AiringStatus AiringStatus `json:"airingStatus,omitempty"`
	TotalSeasons int          `json:"totalSeasons,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// EntryPatch lists the fields a client may change on an existing entry.  A
// nil pointer means "not supplied".  Owner, Kind, ID and the timestamps are
// absent, so an update request cannot change them.
type EntryPatch struct {
	Title        *string  `json:"title"`
	Director     *string  `json:"director"`
	Budget       *float64 `json:"budget"`
	Location     *string  `json:"location"`
	Duration     *string  `json:"duration"`
	YearOrTime   *string  `json:"yearOrTime"`
	Genre        *string  `json:"genre"`
	Rating       *float64 `json:"rating"`
	Description  *string  `json:"description"`
	AiringStatus *string  `json:"airingStatus"`
	TotalSeasons *int     `json:"totalSeasons"`
}

// ForKind returns p without the fields kind does not carry.  Movies have no
// airing status or season count, so those keys are dropped.
func (p EntryPatch) ForKind(kind Kind) EntryPatch {
	if kind == KindMovie {
		p.AiringStatus = nil
		p.TotalSeasons = nil
	}
	return p
}

// Empty reports whether the patch carries no field at all.
func (p EntryPatch) Empty() bool {
	return p.Title == nil && p.Director == nil && p.Budget == nil &&
		p.Location == nil && p.Duration == nil && p.YearOrTime == nil &&
		p.Genre == nil && p.Rating == nil && p.Description == nil &&
		p.AiringStatus == nil && p.TotalSeasons == nil
}

// Apply overwrites the supplied fields of e.  Text is trimmed.  An airing
// status outside the enum is stored as-is so that Validate can reject it.
func (e *Entry) Apply(p EntryPatch) {
	setText := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setText(&e.Title, p.Title)
	setText(&e.Director, p.Director)
	setText(&e.Location, p.Location)
	setText(&e.Duration, p.Duration)
	setText(&e.YearOrTime, p.YearOrTime)
	setText(&e.Genre, p.Genre)
	setText(&e.Description, p.Description)
	if p.Budget != nil {
		e.Budget = *p.Budget
	}
	if p.Rating != nil {
		e.Rating = *p.Rating
	}
	if p.AiringStatus != nil {
		if st, ok := ParseAiringStatus(*p.AiringStatus); ok {
			e.AiringStatus = st
		} else {
			e.AiringStatus = AiringStatus(strings.TrimSpace(*p.AiringStatus))
		}
	}
	if p.TotalSeasons != nil {
		e.TotalSeasons = *p.TotalSeasons
	}
}

// Validate checks the type and range constraints of a complete entry.  It
// returns nil or a *ValidationError describing every violated field.
func (e *Entry) Validate() error {
	v := NewValidationError()

	v.Check(e.Kind.Valid(), "type", "must be movie or series")
	v.Check(strings.TrimSpace(e.Owner) != "", "owner", "is required")
	v.Check(strings.TrimSpace(e.Title) != "", "title", "is required")
	v.Check(strings.TrimSpace(e.Director) != "", "director", "is required")
	v.Check(strings.TrimSpace(e.Location) != "", "location", "is required")
	v.Check(strings.TrimSpace(e.YearOrTime) != "", "yearOrTime", "is required")
	v.Check(strings.TrimSpace(e.Genre) != "", "genre", "is required")

	maxLen := func(s string, n int, field string) {
		v.Check(utf8.RuneCountInString(s) <= n, field, fmtMax(n))
	}
	maxLen(e.Title, MaxNameLength, "title")
	maxLen(e.Director, MaxNameLength, "director")
	maxLen(e.Location, MaxNameLength, "location")
	maxLen(e.Duration, MaxShortTextLength, "duration")
	maxLen(e.YearOrTime, MaxShortTextLength, "yearOrTime")
	maxLen(e.Genre, MaxGenreLength, "genre")
	v.Check(len(e.Description) <= MaxDescriptionLength, "description", "is too long")

	switch e.Kind {
	case KindMovie:
		v.Check(strings.TrimSpace(e.Duration) != "", "duration", "is required")
		v.Check(e.AiringStatus == "", "airingStatus", "is only allowed on series")
		v.Check(e.TotalSeasons == 0, "totalSeasons", "is only allowed on series")
	case KindSeries:
		v.Check(e.Budget >= 0, "budget", "cannot be negative")
		v.Check(e.Rating >= 0, "rating", "cannot be less than 0")
		v.Check(e.Rating <= MaxSeriesRating, "rating", "cannot exceed 10")
		_, ok := ParseAiringStatus(string(e.AiringStatus))
		v.Check(ok, "airingStatus", "must be airing or finished")
		v.Check(e.TotalSeasons >= 1, "totalSeasons", "must be at least 1")
		v.Check(e.TotalSeasons <= MaxTotalSeasons, "totalSeasons", "is too large")
	}

	if v.Valid() {
		return nil
	}
	return v
}

func fmtMax(n int) string {
	return "must be at most " + strconv.Itoa(n) + " characters"
}
