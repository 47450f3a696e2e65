package adminController

import (
	"context"

	"hkboard/internal/models"
	"hkboard/internal/services"
	"hkboard/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
)

type AdminControllerInterface interface {
	Export(ctx context.Context, session models.Session) (models.Dataset, error)
	Import(ctx context.Context, session models.Session, body []byte, confirm bool) (*ImportResponse, error)
	Reset(ctx context.Context, session models.Session, confirm bool) (*services.ResetReport, error)
	UndoReset(ctx context.Context, session models.Session, confirm bool) (*services.ResetReport, error)
}

type AdminController struct {
	board *services.BoardService
	reset *services.DailyResetService
	log   logger.Logger
}

func New(board *services.BoardService, reset *services.DailyResetService) AdminControllerInterface {
	return &AdminController{
		board: board,
		reset: reset,
		log:   logger.New("adminController"),
	}
}

type ImportResponse struct {
	Collections []models.Collection   `json:"collections"`
	Results     []storage.WriteResult `json:"results"`
}

func (c *AdminController) Export(ctx context.Context, session models.Session) (models.Dataset, error) {
	if !session.IsAdmin() {
		return models.Dataset{}, services.ErrAdminRequired
	}

	c.log.Function("Export").Info("Exporting board", "by", session.Identity)
	return c.board.Export(), nil
}

// Import overwrites each collection present in body. Absent collections are left alone.
func (c *AdminController) Import(
	ctx context.Context,
	session models.Session,
	body []byte,
	confirm bool,
) (*ImportResponse, error) {
	log := logger.New("adminController").TraceFromContext(ctx).Function("Import")

	if !session.IsAdmin() {
		return nil, services.ErrAdminRequired
	}
	if !confirm {
		return nil, services.ErrConfirmationRequired
	}

	doc, err := models.DecodeDatasetImport(body)
	if err != nil {
		return nil, log.Err("invalid import document", err)
	}

	results, err := c.board.Import(ctx, doc)
	response := &ImportResponse{Collections: doc.Present, Results: results}
	if err != nil {
		return response, err
	}

	log.Info("Import completed", "by", session.Identity, "collections", doc.Present)
	return response, nil
}

func (c *AdminController) Reset(
	ctx context.Context,
	session models.Session,
	confirm bool,
) (*services.ResetReport, error) {
	report, err := c.reset.ManualReset(ctx, session, confirm)
	if err != nil {
		return &report, err
	}
	return &report, nil
}

func (c *AdminController) UndoReset(
	ctx context.Context,
	session models.Session,
	confirm bool,
) (*services.ResetReport, error) {
	report, err := c.reset.UndoLastReset(ctx, session, confirm)
	if err != nil {
		return &report, err
	}
	return &report, nil
}
