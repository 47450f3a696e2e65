package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type RoomStatus string

const (
	RoomStatusCheckout RoomStatus = "checkout"
	RoomStatusDirty    RoomStatus = "dirty"
	RoomStatusClean    RoomStatus = "clean"
	RoomStatusDefault  RoomStatus = "default"
	RoomStatusClosed   RoomStatus = "closed"
)

func (s RoomStatus) IsValid() bool {
	switch s {
	case RoomStatusCheckout, RoomStatusDirty, RoomStatusClean, RoomStatusDefault, RoomStatusClosed:
		return true
	}
	return false
}

// NeedsTurnover reports whether the room still has to be physically cleaned.
func (s RoomStatus) NeedsTurnover() bool {
	return s == RoomStatusDirty || s == RoomStatusCheckout
}

type WorkflowPriority string

const (
	PriorityImmediate     WorkflowPriority = "immediate"
	PriorityAfterCheckout WorkflowPriority = "after-checkout"
	PriorityNormal        WorkflowPriority = "normal"
)

const (
	FLOOR_COUNT     = 5
	UNITS_PER_FLOOR = 8
	ROOM_COUNT      = FLOOR_COUNT * UNITS_PER_FLOOR
	OVERDUE_AFTER   = 24 * time.Hour
)

var (
	ErrInvalidRoomNumber = errors.New("invalid room number")
	ErrInvalidRoomStatus = errors.New("invalid room status")
)

type Room struct {
	Number      string     `gorm:"type:varchar(8);primaryKey"                json:"number"`
	Floor       int        `gorm:"not null;index"                            json:"floor"`
	Status      RoomStatus `gorm:"type:varchar(16);not null;default:default" json:"status"`
	HasGuests   bool       `gorm:"not null;default:false"                    json:"hasGuests"`
	LastCleaned *time.Time `                                                 json:"lastCleaned"`
	LastUpdated time.Time  `gorm:"not null"                                  json:"lastUpdated"`
}

func (Room) TableName() string {
	return "rooms"
}

// ApplyStatus sets the cleaning status. Marking a room clean stamps LastCleaned.
func (r *Room) ApplyStatus(status RoomStatus, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRoomStatus, status)
	}

	r.Status = status
	r.LastUpdated = now
	if status == RoomStatusClean {
		cleaned := now
		r.LastCleaned = &cleaned
	}

	return nil
}

func (r *Room) ApplyGuests(hasGuests bool, now time.Time) {
	r.HasGuests = hasGuests
	r.LastUpdated = now
}

func RoomNumber(floor, unit int) string {
	return fmt.Sprintf("%d0%d", floor, unit)
}

// ParseRoomNumber splits a "{floor}0{unit}" room number.
func ParseRoomNumber(number string) (floor int, unit int, err error) {
	if len(number) != 3 || number[1] != '0' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRoomNumber, number)
	}

	floor = int(number[0] - '0')
	unit = int(number[2] - '0')
	if floor < 1 || floor > FLOOR_COUNT || unit < 1 || unit > UNITS_PER_FLOOR {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRoomNumber, number)
	}

	return floor, unit, nil
}

// GenerateRoomCatalog builds the full fixed room set, every room in the default state.
func GenerateRoomCatalog(now time.Time) []Room {
	rooms := make([]Room, 0, ROOM_COUNT)
	for floor := 1; floor <= FLOOR_COUNT; floor++ {
		for unit := 1; unit <= UNITS_PER_FLOOR; unit++ {
			rooms = append(rooms, Room{
				Number:      RoomNumber(floor, unit),
				Floor:       floor,
				Status:      RoomStatusDefault,
				LastUpdated: now,
			})
		}
	}
	return rooms
}

// ValidateCatalog checks that rooms holds exactly one entry per catalog room number.
func ValidateCatalog(rooms []Room) error {
	if len(rooms) != ROOM_COUNT {
		return fmt.Errorf("catalog has %d rooms, want %d", len(rooms), ROOM_COUNT)
	}

	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		floor, _, err := ParseRoomNumber(room.Number)
		if err != nil {
			return err
		}
		if floor != room.Floor {
			return fmt.Errorf("room %s is on floor %d, not %d", room.Number, floor, room.Floor)
		}
		if seen[room.Number] {
			return fmt.Errorf("duplicate room %s", room.Number)
		}
		if !room.Status.IsValid() {
			return fmt.Errorf("room %s: %w: %q", room.Number, ErrInvalidRoomStatus, room.Status)
		}
		seen[room.Number] = true
	}

	return nil
}

// NormalizeCatalog regenerates the full catalog and carries over the state of every valid
// room found in rooms. Unknown numbers and duplicates after the first are dropped.
func NormalizeCatalog(rooms []Room, now time.Time) []Room {
	known := make(map[string]Room, len(rooms))
	for _, room := range rooms {
		if _, _, err := ParseRoomNumber(room.Number); err != nil {
			continue
		}
		if _, dup := known[room.Number]; dup {
			continue
		}
		known[room.Number] = room
	}

	catalog := GenerateRoomCatalog(now)
	for i, fresh := range catalog {
		existing, ok := known[fresh.Number]
		if !ok {
			continue
		}
		existing.Floor = fresh.Floor
		if !existing.Status.IsValid() {
			existing.Status = RoomStatusDefault
		}
		catalog[i] = existing
	}

	return catalog
}

func SortRooms(rooms []Room) {
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].Number < rooms[j].Number
	})
}

// GetWorkflowPriority derives the room's cleaning urgency from occupancy and status.
func GetWorkflowPriority(room Room) WorkflowPriority {
	if !room.Status.NeedsTurnover() {
		return PriorityNormal
	}
	if room.HasGuests {
		return PriorityAfterCheckout
	}
	return PriorityImmediate
}

// IsOverdue reports whether a room that is not already dirty went uncleaned for more than
// OVERDUE_AFTER. It is a read-time view and is never persisted.
func IsOverdue(room Room, now time.Time) bool {
	if room.LastCleaned == nil || room.Status == RoomStatusDirty {
		return false
	}
	return now.Sub(*room.LastCleaned) > OVERDUE_AFTER
}
