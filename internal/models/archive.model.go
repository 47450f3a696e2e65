package models

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

const (
	ARCHIVE_DATE_LAYOUT       = "2006-01-02"
	DEFAULT_ARCHIVE_RETENTION = 30
)

type ArchiveData struct {
	Rooms    []Room        `json:"rooms"`
	Tasks    []Task        `json:"tasks"`
	Messages []ChatMessage `json:"messages"`
}

// Archive is the immutable end-of-day snapshot for one calendar date.
type Archive struct {
	Date      string                          `gorm:"type:varchar(10);primaryKey" json:"date"`
	Summary   string                          `gorm:"type:text"                   json:"summary"`
	Data      datatypes.JSONType[ArchiveData] `gorm:"type:jsonb"                  json:"data"`
	CreatedAt time.Time                       `gorm:"autoCreateTime"              json:"createdAt"`
}

func (Archive) TableName() string {
	return "archives"
}

func NewArchive(date string, data ArchiveData, now time.Time) Archive {
	completed := 0
	for _, task := range data.Tasks {
		if task.Completed {
			completed++
		}
	}
	cleaned := 0
	for _, room := range data.Rooms {
		if room.Status == RoomStatusClean {
			cleaned++
		}
	}

	return Archive{
		Date: date,
		Summary: fmt.Sprintf(
			"%d messages, %d tasks (%d completed), %d rooms clean",
			len(data.Messages), len(data.Tasks), completed, cleaned,
		),
		Data:      datatypes.NewJSONType(data),
		CreatedAt: now,
	}
}

func HasArchive(archives []Archive, date string) bool {
	for _, archive := range archives {
		if archive.Date == date {
			return true
		}
	}
	return false
}

// SortArchives orders newest first.
func SortArchives(archives []Archive) {
	sort.SliceStable(archives, func(i, j int) bool {
		return archives[i].Date > archives[j].Date
	})
}

// PruneArchives keeps archives dated within retentionDays before today.
func PruneArchives(archives []Archive, today string, retentionDays int) []Archive {
	if retentionDays <= 0 {
		retentionDays = DEFAULT_ARCHIVE_RETENTION
	}
	day, err := time.Parse(ARCHIVE_DATE_LAYOUT, today)
	if err != nil {
		return archives
	}
	cutoff := day.AddDate(0, 0, -retentionDays).Format(ARCHIVE_DATE_LAYOUT)

	kept := make([]Archive, 0, len(archives))
	for _, archive := range archives {
		if archive.Date >= cutoff {
			kept = append(kept, archive)
		}
	}
	return kept
}

// LatestArchive returns the archive with the greatest date.
func LatestArchive(archives []Archive) (Archive, bool) {
	if len(archives) == 0 {
		return Archive{}, false
	}
	latest := archives[0]
	for _, archive := range archives[1:] {
		if archive.Date > latest.Date {
			latest = archive
		}
	}
	return latest, true
}
