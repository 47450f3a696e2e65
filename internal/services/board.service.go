package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/storage"
	"hkboard/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrTaskNotFound = errors.New("task not found")
	ErrBoardClosed  = errors.New("board service is closed")
)

// BoardStorage is the persistence the board needs. The storage coordinator satisfies it.
type BoardStorage interface {
	Read(ctx context.Context, collection models.Collection) (storage.ReadResult, error)
	Write(ctx context.Context, req storage.WriteRequest) storage.WriteResult
}

type BoardEventType string

const (
	BoardCollectionChanged BoardEventType = "collection_changed"
	BoardSyncChanged       BoardEventType = "sync_changed"
	BoardReloaded          BoardEventType = "reload"

	SUBSCRIBER_BUFFER = 64
)

type BoardEvent struct {
	Type       BoardEventType    `json:"type"`
	Collection models.Collection `json:"collection,omitempty"`
	Keys       []string          `json:"keys,omitempty"`
	At         time.Time         `json:"at"`
}

type RoomView struct {
	models.Room
	Priority models.WorkflowPriority `json:"priority"`
	Overdue  bool                    `json:"overdue"`
	Sync     SyncState               `json:"sync"`
}

type TaskView struct {
	models.Task
	Sync SyncState `json:"sync"`
}

type MessageView struct {
	models.ChatMessage
	Sync SyncState `json:"sync"`
}

// CollectionUpdate names a collection to persist whole, with the entity changes the
// structured store should apply instead. No changes means replace.
type CollectionUpdate struct {
	Collection models.Collection
	Changes    []storage.Change
}

type writeJob struct {
	req  storage.WriteRequest
	refs []EntityRef
	done chan storage.WriteResult
}

// writeQueue is an unbounded FIFO drained by one worker, so writes of a collection reach
// the coordinator in the order their snapshots were taken.
type writeQueue struct {
	mu     sync.Mutex
	jobs   []writeJob
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{signal: make(chan struct{}, 1)}
}

func (q *writeQueue) push(job writeJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *writeQueue) drain() []writeJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.jobs
	q.jobs = nil
	return jobs
}

// BoardService holds the live board in memory. Mutations apply immediately and are
// persisted in the background; the outcome is tracked per entity.
type BoardService struct {
	store BoardStorage
	log   logger.Logger
	now   func() time.Time

	mu     sync.RWMutex
	state  models.Dataset
	loaded bool

	tracker  *syncTracker
	queues   map[models.Collection]*writeQueue
	inflight sync.WaitGroup
	workers  sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[int]chan BoardEvent
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func NewBoardService(store BoardStorage, now func() time.Time) *BoardService {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &BoardService{
		store:   store,
		log:     logger.New("boardService"),
		now:     now,
		tracker: newSyncTracker(),
		queues:  make(map[models.Collection]*writeQueue, len(models.Collections)),
		subs:    make(map[int]chan BoardEvent),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.state.Rooms = models.GenerateRoomCatalog(now())

	for _, collection := range models.Collections {
		queue := newWriteQueue()
		s.queues[collection] = queue
		s.workers.Add(1)
		go s.runQueue(queue)
	}

	return s
}

func (s *BoardService) runQueue(queue *writeQueue) {
	defer s.workers.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-queue.signal:
		}

		for jobs := queue.drain(); len(jobs) > 0; jobs = queue.drain() {
			for _, job := range jobs {
				if s.ctx.Err() != nil {
					s.dropWrite(job)
					continue
				}
				s.runWrite(job)
			}
		}
	}
}

func (s *BoardService) runWrite(job writeJob) {
	defer s.inflight.Done()
	log := s.log.Function("runWrite")

	result := s.store.Write(s.ctx, job.req)
	s.tracker.settle(job.refs, result, s.now())

	if !result.OK {
		log.Warn("Write failed on every backend",
			"collection", job.req.Collection,
			"entities", len(job.refs),
			"error", result.Err(),
		)
	}

	keys := make([]string, 0, len(job.refs))
	for _, ref := range job.refs {
		keys = append(keys, ref.Key)
	}
	s.publish(BoardEvent{Type: BoardSyncChanged, Collection: job.req.Collection, Keys: keys})

	if job.done != nil {
		job.done <- result
	}
}

// enqueueLocked snapshots collection from the current state and queues its write. The
// caller must hold s.mu for writing.
func (s *BoardService) enqueueLocked(
	collection models.Collection,
	keys []string,
	changes []storage.Change,
) (<-chan storage.WriteResult, error) {
	if s.closed.Load() {
		return nil, ErrBoardClosed
	}

	snapshot, err := s.state.Marshal(collection)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", collection, err)
	}

	refs := make([]EntityRef, 0, len(keys))
	for _, key := range keys {
		refs = append(refs, EntityRef{Collection: collection, Key: key})
	}
	s.tracker.begin(refs, s.now())

	done := make(chan storage.WriteResult, 1)
	s.inflight.Add(1)
	s.queues[collection].push(writeJob{
		req: storage.WriteRequest{
			Collection: collection,
			Snapshot:   snapshot,
			Changes:    changes,
		},
		refs: refs,
		done: done,
	})

	return done, nil
}

// Load reads every collection from storage. Rooms are seeded from the catalog when every
// backend answered and none has them yet.
func (s *BoardService) Load(ctx context.Context) error {
	log := logger.New("boardService").TraceFromContext(ctx).Function("Load")

	missing, err := s.refresh(ctx)
	if err != nil {
		log.Warn("Initial load incomplete, continuing with local state", "error", err)
	}

	s.mu.Lock()
	s.loaded = true
	if missing[models.CollectionRooms] {
		s.state.Rooms = models.GenerateRoomCatalog(s.now())
		keys := roomKeys(s.state.Rooms)
		if _, seedErr := s.enqueueLocked(models.CollectionRooms, keys, nil); seedErr != nil {
			s.mu.Unlock()
			return log.Err("failed to seed room catalog", seedErr)
		}
		log.Info("Seeded room catalog", "rooms", len(keys))
	}
	s.mu.Unlock()

	s.publish(BoardEvent{Type: BoardReloaded})
	return err
}

// Refresh replaces local state with what storage returns. Entities with a write still in
// flight keep their local value.
func (s *BoardService) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

// Reload waits for queued writes, then refreshes and tells subscribers to refetch.
func (s *BoardService) Reload(ctx context.Context) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	err := s.Refresh(ctx)
	s.publish(BoardEvent{Type: BoardReloaded})
	return err
}

func (s *BoardService) refresh(ctx context.Context) (map[models.Collection]bool, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("refresh")

	results := make([]storage.ReadResult, len(models.Collections))
	errs := make([]error, len(models.Collections))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, collection := range models.Collections {
		group.Go(func() error {
			results[i], errs[i] = s.store.Read(groupCtx, collection)
			return nil
		})
	}
	_ = group.Wait()

	missing := make(map[models.Collection]bool)
	var applied []models.Collection
	var failures []error

	s.mu.Lock()
	now := s.now()
	for i, collection := range models.Collections {
		if errs[i] != nil {
			failures = append(failures, fmt.Errorf("read %s: %w", collection, errs[i]))
			continue
		}
		if !results[i].Found {
			missing[collection] = true
			continue
		}
		if err := s.applyRemoteLocked(collection, results[i].Data, now); err != nil {
			failures = append(failures, err)
			continue
		}
		applied = append(applied, collection)
	}
	s.mu.Unlock()

	for _, collection := range applied {
		s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: collection})
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		log.Warn("Refresh incomplete", "error", err)
		return missing, err
	}
	return missing, nil
}

func (s *BoardService) applyRemoteLocked(collection models.Collection, data json.RawMessage, now time.Time) error {
	pending := func(key string) bool {
		return s.tracker.isPending(EntityRef{Collection: collection, Key: key})
	}

	switch collection {
	case models.CollectionRooms:
		var remote []models.Room
		if err := json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("decode rooms: %w", err)
		}
		merged := mergeCollection(s.state.Rooms, remote, roomKey, pending)
		s.state.Rooms = models.NormalizeCatalog(merged, now)
		s.markAuthoritative(collection, roomKeys(s.state.Rooms), now)
	case models.CollectionTasks:
		var remote []models.Task
		if err := json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("decode tasks: %w", err)
		}
		s.state.Tasks = mergeCollection(s.state.Tasks, remote, taskKey, pending)
		models.SortTasks(s.state.Tasks)
		s.markAuthoritative(collection, keysOf(s.state.Tasks, taskKey), now)
	case models.CollectionMessages:
		var remote []models.ChatMessage
		if err := json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("decode messages: %w", err)
		}
		s.state.Messages = mergeCollection(s.state.Messages, remote, messageKey, pending)
		models.SortMessages(s.state.Messages)
		s.markAuthoritative(collection, keysOf(s.state.Messages, messageKey), now)
	case models.CollectionArchives:
		var remote []models.Archive
		if err := json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("decode archives: %w", err)
		}
		s.state.Archives = mergeCollection(s.state.Archives, remote, archiveKey, pending)
		models.SortArchives(s.state.Archives)
		s.markAuthoritative(collection, keysOf(s.state.Archives, archiveKey), now)
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

func (s *BoardService) markAuthoritative(collection models.Collection, keys []string, now time.Time) {
	keep := make(map[string]bool, len(keys))
	refs := make([]EntityRef, 0, len(keys))
	for _, key := range keys {
		keep[key] = true
		refs = append(refs, EntityRef{Collection: collection, Key: key})
	}
	s.tracker.markSynced(refs, now)
	s.tracker.forget(collection, keep)
}

// mergeCollection takes remote as the truth except for entities pending locally, which
// keep the local copy even when remote does not know them yet.
func mergeCollection[T any](local, remote []T, key func(T) string, pending func(string) bool) []T {
	localByKey := make(map[string]T, len(local))
	for _, item := range local {
		localByKey[key(item)] = item
	}

	merged := make([]T, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for _, item := range remote {
		k := key(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		if mine, ok := localByKey[k]; ok && pending(k) {
			merged = append(merged, mine)
			continue
		}
		merged = append(merged, item)
	}

	for _, item := range local {
		k := key(item)
		if !seen[k] && pending(k) {
			seen[k] = true
			merged = append(merged, item)
		}
	}
	return merged
}

func roomKey(r models.Room) string           { return r.Number }
func taskKey(t models.Task) string           { return t.ID }
func messageKey(m models.ChatMessage) string { return m.ID }
func archiveKey(a models.Archive) string     { return a.Date }

func keysOf[T any](items []T, key func(T) string) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, key(item))
	}
	return keys
}

func roomKeys(rooms []models.Room) []string {
	return keysOf(rooms, roomKey)
}

func (s *BoardService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot returns a copy of the whole board.
func (s *BoardService) Snapshot() models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Export is the import/export document of the current board.
func (s *BoardService) Export() models.Dataset {
	snapshot := s.Snapshot()
	snapshot.Rooms = nonNilSlice(snapshot.Rooms)
	snapshot.Tasks = nonNilSlice(snapshot.Tasks)
	snapshot.Messages = nonNilSlice(snapshot.Messages)
	snapshot.Archives = nonNilSlice(snapshot.Archives)
	return snapshot
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *BoardService) roomViewLocked(room models.Room, now time.Time) RoomView {
	return RoomView{
		Room:     room,
		Priority: models.GetWorkflowPriority(room),
		Overdue:  models.IsOverdue(room, now),
		Sync:     s.tracker.get(EntityRef{Collection: models.CollectionRooms, Key: room.Number}),
	}
}

func (s *BoardService) Rooms() []RoomView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	views := make([]RoomView, 0, len(s.state.Rooms))
	for _, room := range s.state.Rooms {
		views = append(views, s.roomViewLocked(room, now))
	}
	return views
}

func (s *BoardService) Room(number string) (RoomView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.roomIndexLocked(number)
	if idx < 0 {
		return RoomView{}, fmt.Errorf("%w: %s", ErrRoomNotFound, number)
	}
	return s.roomViewLocked(s.state.Rooms[idx], s.now()), nil
}

func (s *BoardService) roomIndexLocked(number string) int {
	for i := range s.state.Rooms {
		if s.state.Rooms[i].Number == number {
			return i
		}
	}
	return -1
}

func (s *BoardService) UpdateRoomStatus(
	ctx context.Context,
	actor models.Actor,
	number string,
	status models.RoomStatus,
) (RoomView, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("UpdateRoomStatus")

	if !status.IsValid() {
		return RoomView{}, fmt.Errorf("%w: %q", models.ErrInvalidRoomStatus, status)
	}

	s.mu.Lock()
	idx := s.roomIndexLocked(number)
	if idx < 0 {
		s.mu.Unlock()
		return RoomView{}, fmt.Errorf("%w: %s", ErrRoomNotFound, number)
	}

	now := s.now()
	room := &s.state.Rooms[idx]
	if err := room.ApplyStatus(status, now); err != nil {
		s.mu.Unlock()
		return RoomView{}, err
	}

	_, err := s.enqueueLocked(models.CollectionRooms, []string{number}, []storage.Change{{
		Op:      storage.ChangeRoomStatus,
		Key:     number,
		Payload: types.RoomStatusRequest{Status: status},
	}})
	view := s.roomViewLocked(*room, now)
	s.mu.Unlock()
	if err != nil {
		return view, err
	}

	log.Info("Room status updated", "room", number, "status", status, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionRooms, Keys: []string{number}})
	return view, nil
}

func (s *BoardService) SetRoomGuests(
	ctx context.Context,
	actor models.Actor,
	number string,
	hasGuests bool,
) (RoomView, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("SetRoomGuests")

	s.mu.Lock()
	idx := s.roomIndexLocked(number)
	if idx < 0 {
		s.mu.Unlock()
		return RoomView{}, fmt.Errorf("%w: %s", ErrRoomNotFound, number)
	}

	now := s.now()
	room := &s.state.Rooms[idx]
	room.ApplyGuests(hasGuests, now)

	_, err := s.enqueueLocked(models.CollectionRooms, []string{number}, []storage.Change{{
		Op:      storage.ChangeRoomGuests,
		Key:     number,
		Payload: types.RoomGuestsRequest{HasGuests: &hasGuests},
	}})
	view := s.roomViewLocked(*room, now)
	s.mu.Unlock()
	if err != nil {
		return view, err
	}

	log.Info("Room occupancy updated", "room", number, "hasGuests", hasGuests, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionRooms, Keys: []string{number}})
	return view, nil
}

func (s *BoardService) Tasks() []TaskView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]TaskView, 0, len(s.state.Tasks))
	for _, task := range s.state.Tasks {
		views = append(views, TaskView{
			Task: task,
			Sync: s.tracker.get(EntityRef{Collection: models.CollectionTasks, Key: task.ID}),
		})
	}
	return views
}

func (s *BoardService) taskIndexLocked(id string) int {
	for i := range s.state.Tasks {
		if s.state.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// AddTask creates a task and posts the task message announcing it.
func (s *BoardService) AddTask(
	ctx context.Context,
	actor models.Actor,
	roomNumber string,
	message string,
) (models.Task, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("AddTask")

	now := s.now()
	task, err := models.NewTask(roomNumber, message, actor.Name, now)
	if err != nil {
		return models.Task{}, err
	}
	announcement := models.NewTaskMessage(
		actor,
		fmt.Sprintf("New task for room %s: %s", roomNumber, message),
		task,
		now,
	)

	s.mu.Lock()
	if s.roomIndexLocked(roomNumber) < 0 {
		s.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomNumber)
	}

	s.state.Tasks = append(s.state.Tasks, task)
	s.state.Messages = append(s.state.Messages, announcement)

	_, taskErr := s.enqueueLocked(models.CollectionTasks, []string{task.ID}, []storage.Change{{
		Op:      storage.ChangeTaskCreate,
		Key:     task.ID,
		Payload: task,
	}})
	_, messageErr := s.enqueueLocked(models.CollectionMessages, []string{announcement.ID}, []storage.Change{{
		Op:      storage.ChangeMessageCreate,
		Key:     announcement.ID,
		Payload: announcement,
	}})
	s.mu.Unlock()
	if err := errors.Join(taskErr, messageErr); err != nil {
		return task, err
	}

	log.Info("Task added", "taskID", task.ID, "room", roomNumber, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionTasks, Keys: []string{task.ID}})
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionMessages, Keys: []string{announcement.ID}})
	return task, nil
}

// CompleteTask marks the task done, refreshes the task snapshot of every message that
// links it and posts a completion notice.
func (s *BoardService) CompleteTask(ctx context.Context, actor models.Actor, id string) (models.Task, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("CompleteTask")

	s.mu.Lock()
	idx := s.taskIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	now := s.now()
	task := &s.state.Tasks[idx]
	if err := task.Complete(actor.Name, now); err != nil {
		s.mu.Unlock()
		return models.Task{}, err
	}
	completed := *task

	// Relink before the notice joins the board: it must reach the structured store as a
	// create only.
	keys, changes := s.relinkTaskLocked(completed)

	notice := models.NewTaskMessage(
		actor,
		fmt.Sprintf("Room %s task completed by %s: %s", completed.RoomNumber, actor.Name, completed.Message),
		completed,
		now,
	)
	s.state.Messages = append(s.state.Messages, notice)

	_, taskErr := s.enqueueLocked(models.CollectionTasks, []string{id}, []storage.Change{{
		Op:  storage.ChangeTaskComplete,
		Key: id,
		Payload: types.CompleteTaskRequest{
			CompletedBy: actor.Name,
			CompletedAt: completed.CompletedAt,
		},
	}})

	keys = append(keys, notice.ID)
	changes = append(changes, storage.Change{Op: storage.ChangeMessageCreate, Key: notice.ID, Payload: notice})
	_, messageErr := s.enqueueLocked(models.CollectionMessages, keys, changes)
	s.mu.Unlock()
	if err := errors.Join(taskErr, messageErr); err != nil {
		return completed, err
	}

	log.Info("Task completed", "taskID", id, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionTasks, Keys: []string{id}})
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionMessages, Keys: keys})
	return completed, nil
}

func (s *BoardService) ReopenTask(ctx context.Context, actor models.Actor, id string) (models.Task, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("ReopenTask")

	s.mu.Lock()
	idx := s.taskIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task := &s.state.Tasks[idx]
	if err := task.Reopen(); err != nil {
		s.mu.Unlock()
		return models.Task{}, err
	}
	reopened := *task

	_, taskErr := s.enqueueLocked(models.CollectionTasks, []string{id}, []storage.Change{{
		Op:  storage.ChangeTaskReopen,
		Key: id,
	}})

	var messageErr error
	keys, changes := s.relinkTaskLocked(reopened)
	if len(keys) > 0 {
		_, messageErr = s.enqueueLocked(models.CollectionMessages, keys, changes)
	}
	s.mu.Unlock()
	if err := errors.Join(taskErr, messageErr); err != nil {
		return reopened, err
	}

	log.Info("Task reopened", "taskID", id, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionTasks, Keys: []string{id}})
	if len(keys) > 0 {
		s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionMessages, Keys: keys})
	}
	return reopened, nil
}

// relinkTaskLocked rewrites the embedded snapshot of task in every linked message.
func (s *BoardService) relinkTaskLocked(task models.Task) ([]string, []storage.Change) {
	var keys []string
	var changes []storage.Change
	for i := range s.state.Messages {
		message := &s.state.Messages[i]
		if !message.RefersTo(task.ID) {
			continue
		}
		snapshot := task
		message.Task = &snapshot
		keys = append(keys, message.ID)
		changes = append(changes, storage.Change{
			Op:      storage.ChangeMessageUpdate,
			Key:     message.ID,
			Payload: *message,
		})
	}
	return keys, changes
}

func (s *BoardService) Messages() []MessageView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]MessageView, 0, len(s.state.Messages))
	for _, message := range s.state.Messages {
		views = append(views, MessageView{
			ChatMessage: message,
			Sync:        s.tracker.get(EntityRef{Collection: models.CollectionMessages, Key: message.ID}),
		})
	}
	return views
}

func (s *BoardService) SendMessage(ctx context.Context, actor models.Actor, content string) (models.ChatMessage, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("SendMessage")

	message, err := models.NewChatMessage(actor, content, s.now())
	if err != nil {
		return models.ChatMessage{}, err
	}

	s.mu.Lock()
	s.state.Messages = append(s.state.Messages, message)
	_, err = s.enqueueLocked(models.CollectionMessages, []string{message.ID}, []storage.Change{{
		Op:      storage.ChangeMessageCreate,
		Key:     message.ID,
		Payload: message,
	}})
	s.mu.Unlock()
	if err != nil {
		return message, err
	}

	log.Debug("Message sent", "messageID", message.ID, "by", actor.Name)
	s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: models.CollectionMessages, Keys: []string{message.ID}})
	return message, nil
}

func (s *BoardService) Archives() []models.Archive {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archives := append([]models.Archive(nil), s.state.Archives...)
	models.SortArchives(archives)
	return archives
}

func (s *BoardService) SyncState(ref EntityRef) SyncState {
	return s.tracker.get(ref)
}

func (s *BoardService) SyncSummary() SyncSummary {
	summary := s.tracker.summary()
	sort.Slice(summary.Failures, func(i, j int) bool {
		if summary.Failures[i].Collection == summary.Failures[j].Collection {
			return summary.Failures[i].Key < summary.Failures[j].Key
		}
		return summary.Failures[i].Collection < summary.Failures[j].Collection
	})
	return summary
}

// Commit swaps in the named collections of next and persists them, waiting for every
// write to settle. Used by the daily reset, undo and import.
func (s *BoardService) Commit(
	ctx context.Context,
	next models.Dataset,
	updates []CollectionUpdate,
) ([]storage.WriteResult, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("Commit")

	s.mu.Lock()
	waits := make([]<-chan storage.WriteResult, 0, len(updates))
	var keys [][]string
	for _, update := range updates {
		var collectionKeys []string
		switch update.Collection {
		case models.CollectionRooms:
			s.state.Rooms = append([]models.Room(nil), next.Rooms...)
			collectionKeys = roomKeys(s.state.Rooms)
		case models.CollectionTasks:
			s.state.Tasks = append([]models.Task(nil), next.Tasks...)
			collectionKeys = keysOf(s.state.Tasks, taskKey)
		case models.CollectionMessages:
			s.state.Messages = append([]models.ChatMessage(nil), next.Messages...)
			collectionKeys = keysOf(s.state.Messages, messageKey)
		case models.CollectionArchives:
			s.state.Archives = append([]models.Archive(nil), next.Archives...)
			collectionKeys = keysOf(s.state.Archives, archiveKey)
		default:
			s.mu.Unlock()
			return nil, log.Error("unknown collection in commit", "collection", update.Collection)
		}

		keep := make(map[string]bool, len(collectionKeys))
		for _, key := range collectionKeys {
			keep[key] = true
		}
		s.tracker.forget(update.Collection, keep)

		done, err := s.enqueueLocked(update.Collection, collectionKeys, update.Changes)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		waits = append(waits, done)
		keys = append(keys, collectionKeys)
	}
	s.mu.Unlock()

	for i, update := range updates {
		s.publish(BoardEvent{Type: BoardCollectionChanged, Collection: update.Collection, Keys: keys[i]})
	}

	results := make([]storage.WriteResult, 0, len(waits))
	var failures []error
	for _, done := range waits {
		select {
		case result := <-done:
			results = append(results, result)
			if err := result.Err(); err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", result.Collection, err))
			}
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}

	if len(failures) > 0 {
		return results, errors.Join(failures...)
	}
	return results, nil
}

// Import overwrites every collection present in the document.
func (s *BoardService) Import(ctx context.Context, doc models.DatasetImport) ([]storage.WriteResult, error) {
	log := logger.New("boardService").TraceFromContext(ctx).Function("Import")

	next := doc.Dataset
	if doc.Has(models.CollectionRooms) {
		if err := models.ValidateCatalog(next.Rooms); err != nil {
			return nil, log.Err("import rejected", err)
		}
		models.SortRooms(next.Rooms)
	}
	for _, task := range next.Tasks {
		if err := task.Validate(); err != nil {
			return nil, log.Err("import rejected", err)
		}
	}
	for _, message := range next.Messages {
		if err := message.Validate(); err != nil {
			return nil, log.Err("import rejected", err)
		}
	}

	updates := make([]CollectionUpdate, 0, len(doc.Present))
	for _, collection := range doc.Present {
		updates = append(updates, CollectionUpdate{Collection: collection})
	}

	results, err := s.Commit(ctx, next, updates)
	if err != nil {
		return results, log.Err("import not fully persisted", err)
	}

	log.Info("Imported board", "collections", doc.Present)
	s.publish(BoardEvent{Type: BoardReloaded})
	return results, nil
}

// Wait blocks until every queued write settled or ctx ends.
func (s *BoardService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of board events and a function that ends the subscription.
// Slow subscribers miss events rather than block the board.
func (s *BoardService) Subscribe() (<-chan BoardEvent, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan BoardEvent, SUBSCRIBER_BUFFER)
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

// NotifyReload tells subscribers to refetch everything.
func (s *BoardService) NotifyReload() {
	s.publish(BoardEvent{Type: BoardReloaded})
}

func (s *BoardService) publish(event BoardEvent) {
	if event.At.IsZero() {
		event.At = s.now()
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// dropWrite settles a job the workers never ran. Its entities end up diverged.
func (s *BoardService) dropWrite(job writeJob) {
	defer s.inflight.Done()

	result := storage.WriteResult{
		Collection: job.req.Collection,
		Outcomes: []storage.Outcome{{
			Backend: "board",
			Status:  storage.OutcomeSkipped,
			Error:   ErrBoardClosed.Error(),
			At:      s.now(),
		}},
	}
	s.tracker.settle(job.refs, result, s.now())

	if job.done != nil {
		job.done <- result
	}
}

// Close waits for queued writes until ctx ends, then stops the workers. Writes still queued
// at that point are dropped.
func (s *BoardService) Close(ctx context.Context) error {
	log := s.log.Function("Close")

	s.mu.Lock()
	s.closed.Store(true)
	s.mu.Unlock()

	err := s.Wait(ctx)
	if err != nil {
		log.Warn("Closing with writes still queued", "error", err)
	}

	s.cancel()
	s.workers.Wait()

	for collection, queue := range s.queues {
		dropped := queue.drain()
		for _, job := range dropped {
			s.dropWrite(job)
		}
		if len(dropped) > 0 {
			log.Warn("Dropped queued writes", "collection", collection, "count", len(dropped))
		}
	}

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()

	return err
}
