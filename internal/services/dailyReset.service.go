package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hkboard/internal/constants"
	"hkboard/internal/models"
	"hkboard/internal/storage"
	"hkboard/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
)

var (
	ErrAdminRequired        = errors.New("admin capability required")
	ErrConfirmationRequired = errors.New("explicit confirmation required")
	ErrNoArchive            = errors.New("no archive to restore")
)

// MarkerStore keeps small local values such as the last reset date.
type MarkerStore interface {
	GetMarker(ctx context.Context, key string) (string, bool, error)
	SetMarker(ctx context.Context, key, value string) error
}

// ResetTransition is the result of applying the daily reset to a board.
type ResetTransition struct {
	Today          string
	ArchiveDate    string
	AlreadyApplied bool
	CarriedOver    int
	Pruned         []string
	Next           models.Dataset
	Updates        []CollectionUpdate
}

// ApplyDailyReset archives the previous day and starts today's board. It does nothing when
// the previous day is already archived.
func ApplyDailyReset(state models.Dataset, today string, now time.Time, retentionDays int) (ResetTransition, error) {
	archiveDate, err := utils.PreviousCalendarDate(today)
	if err != nil {
		return ResetTransition{}, err
	}

	transition := ResetTransition{Today: today, ArchiveDate: archiveDate}
	if models.HasArchive(state.Archives, archiveDate) {
		transition.AlreadyApplied = true
		transition.Next = state.Clone()
		return transition, nil
	}

	archive := models.NewArchive(archiveDate, models.ArchiveData{
		Rooms:    append([]models.Room{}, state.Rooms...),
		Tasks:    append([]models.Task{}, state.Tasks...),
		Messages: append([]models.ChatMessage{}, state.Messages...),
	}, now)

	rooms := make([]models.Room, len(state.Rooms))
	for i, room := range state.Rooms {
		if room.Status != models.RoomStatusCheckout && room.Status != models.RoomStatusDefault {
			room.Status = models.RoomStatusDefault
			room.LastUpdated = now
		}
		rooms[i] = room
	}

	tasks := make([]models.Task, 0, len(state.Tasks))
	for _, task := range state.Tasks {
		if !task.Completed {
			tasks = append(tasks, task)
		}
	}

	announcement := models.ChatMessage{
		ID:         "system-reset-" + today,
		Type:       models.MessageTypeMessage,
		Sender:     models.SYSTEM_SENDER,
		SenderType: models.SenderSystem,
		Content: fmt.Sprintf(
			"Daily reset complete. %s archived; %d incomplete task(s) carried over.",
			archiveDate, len(tasks),
		),
		Timestamp: now,
	}

	withNew := append(append([]models.Archive{}, state.Archives...), archive)
	kept := models.PruneArchives(withNew, today, retentionDays)
	models.SortArchives(kept)

	keptDates := make(map[string]bool, len(kept))
	for _, a := range kept {
		keptDates[a.Date] = true
	}
	archiveChanges := []storage.Change{}
	if keptDates[archive.Date] {
		archiveChanges = append(archiveChanges, storage.Change{
			Op:      storage.ChangeArchiveCreate,
			Key:     archive.Date,
			Payload: archive,
		})
	}
	for _, a := range withNew {
		if !keptDates[a.Date] {
			transition.Pruned = append(transition.Pruned, a.Date)
			archiveChanges = append(archiveChanges, storage.Change{Op: storage.ChangeArchiveDelete, Key: a.Date})
		}
	}

	transition.CarriedOver = len(tasks)
	transition.Next = models.Dataset{
		Rooms:    rooms,
		Tasks:    tasks,
		Messages: []models.ChatMessage{announcement},
		Archives: kept,
	}
	transition.Updates = []CollectionUpdate{
		{Collection: models.CollectionArchives, Changes: archiveChanges},
		{Collection: models.CollectionRooms},
		{Collection: models.CollectionTasks},
		{Collection: models.CollectionMessages},
	}
	return transition, nil
}

type ResetOutcome string

const (
	ResetOutcomeApplied        ResetOutcome = "applied"
	ResetOutcomeAlreadyApplied ResetOutcome = "already_applied"
	ResetOutcomeRestored       ResetOutcome = "restored"
)

// ResetReport describes what a reset or undo did. Message is meant for the admin.
type ResetReport struct {
	Date           string                `json:"date"`
	ArchiveDate    string                `json:"archiveDate,omitempty"`
	Outcome        ResetOutcome          `json:"outcome,omitempty"`
	Message        string                `json:"message,omitempty"`
	Applied        bool                  `json:"applied"`
	AlreadyApplied bool                  `json:"alreadyApplied"`
	CarriedOver    int                   `json:"carriedOver"`
	Pruned         []string              `json:"pruned,omitempty"`
	Results        []storage.WriteResult `json:"results,omitempty"`
}

type DailyResetService struct {
	board     *BoardService
	markers   MarkerStore
	location  *time.Location
	retention int
	now       func() time.Time
	mu        sync.Mutex
	log       logger.Logger
}

func NewDailyResetService(
	board *BoardService,
	markers MarkerStore,
	location *time.Location,
	retentionDays int,
	now func() time.Time,
) *DailyResetService {
	if location == nil {
		location = time.Local
	}
	if retentionDays <= 0 {
		retentionDays = models.DEFAULT_ARCHIVE_RETENTION
	}
	if now == nil {
		now = time.Now
	}
	return &DailyResetService{
		board:     board,
		markers:   markers,
		location:  location,
		retention: retentionDays,
		now:       now,
		log:       logger.New("dailyResetService"),
	}
}

func (s *DailyResetService) Today() string {
	return utils.CalendarDate(s.now(), s.location)
}

// LastResetDate returns the local marker, or "" when none was recorded.
func (s *DailyResetService) LastResetDate(ctx context.Context) (string, error) {
	marker, found, err := s.markers.GetMarker(ctx, constants.LastResetMarker)
	if err != nil || !found {
		return "", err
	}
	return marker, nil
}

// CheckAndRun resets the board when the marker is not today. The marker only moves once
// every collection was persisted by at least one backend.
func (s *DailyResetService) CheckAndRun(ctx context.Context) (ResetReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.New("dailyResetService").TraceFromContext(ctx).Function("CheckAndRun")

	today := s.Today()
	marker, err := s.LastResetDate(ctx)
	if err != nil {
		log.Warn("Could not read last reset date, checking archives instead", "error", err)
	}
	if marker == today {
		return ResetReport{Date: today}, nil
	}

	if err := s.board.Refresh(ctx); err != nil {
		log.Warn("Refresh before reset incomplete", "error", err)
	}

	report, err := s.run(ctx, today)
	if err != nil {
		return report, log.Err("daily reset failed", err, "date", today)
	}

	if report.Applied {
		s.board.NotifyReload()
	}
	return report, nil
}

// ManualReset runs the same transition on admin request, then reloads from storage.
func (s *DailyResetService) ManualReset(ctx context.Context, session models.Session, confirm bool) (ResetReport, error) {
	if err := requireConfirmedAdmin(session, confirm); err != nil {
		return ResetReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.New("dailyResetService").TraceFromContext(ctx).Function("ManualReset")
	log.Info("Manual reset requested", "by", session.Identity)

	report, err := s.run(ctx, s.Today())
	if err != nil {
		return report, log.Err("manual reset failed", err)
	}

	if err := s.board.Reload(ctx); err != nil {
		log.Warn("Reload after reset incomplete", "error", err)
	}
	return report, nil
}

func (s *DailyResetService) run(ctx context.Context, today string) (ResetReport, error) {
	log := logger.New("dailyResetService").TraceFromContext(ctx).Function("run")

	transition, err := ApplyDailyReset(s.board.Snapshot(), today, s.now(), s.retention)
	if err != nil {
		return ResetReport{Date: today}, err
	}

	report := ResetReport{
		Date:           today,
		ArchiveDate:    transition.ArchiveDate,
		AlreadyApplied: transition.AlreadyApplied,
	}

	if !transition.AlreadyApplied {
		results, err := s.board.Commit(ctx, transition.Next, transition.Updates)
		report.Results = results
		if err != nil {
			return report, err
		}
		report.Applied = true
		report.CarriedOver = transition.CarriedOver
		report.Pruned = transition.Pruned
		report.Outcome = ResetOutcomeApplied
		report.Message = fmt.Sprintf(
			"Reset applied for %s: archived %s, carried over %d incomplete task(s)",
			today, transition.ArchiveDate, transition.CarriedOver,
		)
		log.Info("Daily reset applied",
			"date", today,
			"archiveDate", transition.ArchiveDate,
			"carriedOver", transition.CarriedOver,
			"pruned", len(transition.Pruned),
		)
	}

	if transition.AlreadyApplied {
		report.Outcome = ResetOutcomeAlreadyApplied
		report.Message = fmt.Sprintf(
			"Nothing to reset: the reset for %s already ran and %s is archived",
			today, transition.ArchiveDate,
		)
	}

	if err := s.markers.SetMarker(ctx, constants.LastResetMarker, today); err != nil {
		return report, log.Err("failed to record reset date", err)
	}
	return report, nil
}

// UndoLastReset restores the live collections from the newest archive and drops it. The
// reset marker stays on today so the reset does not immediately run again.
func (s *DailyResetService) UndoLastReset(ctx context.Context, session models.Session, confirm bool) (ResetReport, error) {
	if err := requireConfirmedAdmin(session, confirm); err != nil {
		return ResetReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.New("dailyResetService").TraceFromContext(ctx).Function("UndoLastReset")

	state := s.board.Snapshot()
	latest, ok := models.LatestArchive(state.Archives)
	if !ok {
		return ResetReport{}, ErrNoArchive
	}

	data := latest.Data.Data()
	remaining := make([]models.Archive, 0, len(state.Archives))
	for _, archive := range state.Archives {
		if archive.Date != latest.Date {
			remaining = append(remaining, archive)
		}
	}

	next := models.Dataset{
		Rooms:    models.NormalizeCatalog(data.Rooms, s.now()),
		Tasks:    data.Tasks,
		Messages: data.Messages,
		Archives: remaining,
	}
	updates := []CollectionUpdate{
		{Collection: models.CollectionRooms},
		{Collection: models.CollectionTasks},
		{Collection: models.CollectionMessages},
		{Collection: models.CollectionArchives, Changes: []storage.Change{
			{Op: storage.ChangeArchiveDelete, Key: latest.Date},
		}},
	}

	report := ResetReport{Date: s.Today(), ArchiveDate: latest.Date}
	results, err := s.board.Commit(ctx, next, updates)
	report.Results = results
	if err != nil {
		return report, log.Err("undo reset not fully persisted", err, "archiveDate", latest.Date)
	}
	report.Applied = true
	report.Outcome = ResetOutcomeRestored
	report.Message = fmt.Sprintf("Restored the board from the %s archive", latest.Date)

	log.Info("Reset undone", "archiveDate", latest.Date, "by", session.Identity)
	if err := s.board.Reload(ctx); err != nil {
		log.Warn("Reload after undo incomplete", "error", err)
	}
	return report, nil
}

func requireConfirmedAdmin(session models.Session, confirm bool) error {
	if !session.IsAdmin() {
		return ErrAdminRequired
	}
	if !confirm {
		return ErrConfirmationRequired
	}
	return nil
}
