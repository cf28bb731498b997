package catalog

import (
	"errors"
	"strconv"
	"strings"

	"service-catalog/core/logger"
	"service-catalog/core/reconcile"
	"service-catalog/core/resilient"
	"service-catalog/core/utils"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/services")
	group.Get("/", h.HandleList)
	group.Post("/", h.HandleCreate)
	group.Post("/sync", h.HandleSync)
	group.Get("/:id", h.HandleGet)
	group.Put("/:id", h.HandleUpdate)
	group.Delete("/:id", h.HandleDelete)
}

// HandleList returns the stored services.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	f := repository.Filter{
		NameContains: c.Query("name"),
		Limit:        c.QueryInt("limit", 0),
		Offset:       c.QueryInt("offset", 0),
	}
	if f.Limit < 0 || f.Offset < 0 {
		return badRequest(c, "limit and offset must be non-negative")
	}

	services, total, err := h.service.List(c.Context(), f)
	if err != nil {
		return h.fail(c, l, "List services failed", err)
	}
	return c.JSON(fiber.Map{"services": services, "total": total})
}

// HandleGet returns one service.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	rec, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.fail(c, l, "Get service failed", err)
	}
	return c.JSON(rec)
}

// HandleCreate creates a service from a flat, nested or mixed payload.
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	raw, err := models.DecodeRawJSON(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := checkPrice(priceOf(raw)); err != nil {
		return h.fail(c, l, "Create service rejected", err)
	}

	rec, err := h.service.Create(c.Context(), raw)
	if err != nil {
		return h.fail(c, l, "Create service failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

type patchRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	BasePrice         any     `json:"basePrice"`
	CaptureDuration   *string `json:"captureDuration"`
	TreatmentDuration *string `json:"treatmentDuration"`
	Deliverables      *string `json:"deliverables"`
	PossibleAddOns    *string `json:"possibleAddOns"`
	TravelFee         *string `json:"travelFee"`
}

// HandleUpdate patches a service. Omitted fields are kept.
func (h *Handler) HandleUpdate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	patch := repository.Patch{
		Name:              req.Name,
		Description:       req.Description,
		CaptureDuration:   req.CaptureDuration,
		TreatmentDuration: req.TreatmentDuration,
		Deliverables:      req.Deliverables,
		PossibleAddOns:    req.PossibleAddOns,
		TravelFee:         req.TravelFee,
	}
	if req.BasePrice != nil {
		price, err := utils.ParseDecimal(req.BasePrice)
		if err != nil {
			return h.fail(c, l, "Update service rejected", &repository.ValidationError{
				Fields: []repository.FieldError{{Field: "basePrice", Rule: "decimal"}},
			})
		}
		patch.BasePrice = &price
	}

	rec, err := h.service.Update(c.Context(), id, patch)
	if err != nil {
		return h.fail(c, l, "Update service failed", err)
	}
	return c.JSON(rec)
}

// HandleDelete removes a service and responds with the removed record.
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	deleted, err := h.service.Delete(c.Context(), id)
	if err != nil {
		return h.fail(c, l, "Delete service failed", err)
	}
	return c.JSON(deleted)
}

// HandleSync reconciles the definitions into every configured target.
// Query flags: force, prune, dry_run and targets (comma separated).
// Responds 207 when at least one target failed.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	opts := reconcile.SyncOptions{
		ReconcileOptions: reconcile.ReconcileOptions{
			ForceUpdate:  c.QueryBool("force", false),
			PruneMissing: c.QueryBool("prune", false),
			DryRun:       c.QueryBool("dry_run", false),
		},
	}
	if raw := c.Query("targets"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			kind, err := reconcile.ParseKind(strings.TrimSpace(name))
			if err != nil {
				return badRequest(c, err.Error())
			}
			opts.Only = append(opts.Only, kind)
		}
	}

	result, shared, err := h.service.Sync(c.Context(), opts)
	if err != nil {
		l.Error("Sync failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	l.Info("Sync finished",
		zap.Bool("shared", shared),
		zap.Int("record_errors", result.Errors()),
		zap.Int("failed_targets", len(result.Failed())),
	)

	status := fiber.StatusOK
	if len(result.Failed()) > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(result)
}

// fail maps err onto an HTTP status.
func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	var verr *repository.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": repository.ErrNotFound.Error()})
	case errors.Is(err, repository.ErrDuplicateName):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": repository.ErrDuplicateName.Error()})
	case resilient.IsConnectivity(err):
		l.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store unavailable"})
	default:
		l.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func parseID(c *fiber.Ctx) (uint, error) {
	n, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid service id")
	}
	return uint(n), nil
}

func priceOf(raw models.RawRecord) any {
	switch r := raw.(type) {
	case models.FlatShape:
		return r.BasePrice
	case models.NestedShape:
		return r.BasePrice
	case models.MixedShape:
		return r.Flat.BasePrice
	}
	return nil
}

// checkPrice rejects a given price that is not a non-negative decimal.
// A missing price is allowed and stored as zero.
func checkPrice(v any) error {
	if v == nil {
		return nil
	}
	d, err := utils.ParseDecimal(v)
	switch {
	case err != nil:
		return &repository.ValidationError{Fields: []repository.FieldError{{Field: "basePrice", Rule: "decimal"}}}
	case d.IsNegative():
		return &repository.ValidationError{Fields: []repository.FieldError{{Field: "basePrice", Rule: "gte"}}}
	}
	return nil
}
