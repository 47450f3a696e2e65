package jobs

import (
	"context"

	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type BoardRefresher interface {
	Loaded() bool
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// BoardRefreshJob pulls changes made by other agents. Entities with writes in flight keep
// their local value. A board that never loaded is loaded instead.
type BoardRefreshJob struct {
	board    BoardRefresher
	log      logger.Logger
	schedule services.Schedule
}

func NewBoardRefreshJob(board BoardRefresher, schedule services.Schedule) *BoardRefreshJob {
	return &BoardRefreshJob{
		board:    board,
		log:      logger.New("boardRefreshJob"),
		schedule: schedule,
	}
}

func (j *BoardRefreshJob) Name() string {
	return "BoardRefresh"
}

func (j *BoardRefreshJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	if !j.board.Loaded() {
		if err := j.board.Load(ctx); err != nil {
			return log.Err("board load failed", err)
		}
		return nil
	}

	if err := j.board.Refresh(ctx); err != nil {
		return log.Err("board refresh failed", err)
	}
	return nil
}

func (j *BoardRefreshJob) Schedule() services.Schedule {
	return j.schedule
}
