// Package handler exposes the submission workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/httputil"
	"examflow/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the workflow operations the handler drives.
type Service interface {
	Create(ctx context.Context, actor models.Actor, in models.CreateInput) (*models.Submission, error)
	Update(ctx context.Context, actor models.Actor, id domain.SubmissionID, in models.UpdateInput) (*models.Submission, error)
	SubmitForApproval(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.Submission, error)
	Assign(ctx context.Context, actor models.Actor, id domain.SubmissionID, in models.AssignInput) (*models.Submission, error)
	Claim(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.ActionResult, error)
	SubmitCollaborativeDraft(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.Submission, error)
	Approve(ctx context.Context, actor models.Actor, id domain.SubmissionID, notes string) (*models.Submission, error)
	Reject(ctx context.Context, actor models.Actor, id domain.SubmissionID, reason string) (*models.Submission, error)
	Reopen(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.Submission, error)
	Delete(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.ActionResult, error)
	List(ctx context.Context, actor models.Actor, filters models.ListFilters) (*models.ListResult, error)
	ListPendingApprovals(ctx context.Context, actor models.Actor, filters models.ListFilters) (*models.ListResult, error)
	GetOne(ctx context.Context, actor models.Actor, id domain.SubmissionID) (*models.Submission, error)
	History(ctx context.Context, actor models.Actor, id domain.SubmissionID, order models.HistoryOrder) (*models.History, error)
}

// Handler wires submission endpoints to the workflow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the submission routes. Authentication middleware is
// applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/pending-approvals", h.HandleListPendingApprovals)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetOne)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Post("/submit", h.HandleSubmitForApproval)
			r.Post("/assign", h.HandleAssign)
			r.Post("/claim", h.HandleClaim)
			r.Post("/submit-collaborative", h.HandleSubmitCollaborative)
			r.Post("/approve", h.HandleApprove)
			r.Post("/reject", h.HandleReject)
			r.Post("/reopen", h.HandleReopen)
			r.Get("/history", h.HandleHistory)
		})
	})
}

// HandleCreate handles POST /submissions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Create(ctx, actor, req.Input())
	if err != nil {
		h.fail(w, ctx, "create", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

// HandleUpdate handles PATCH /submissions/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Update(ctx, actor, id, req.Input())
	if err != nil {
		h.fail(w, ctx, "update", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// HandleAssign handles POST /submissions/{id}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Assign(ctx, actor, id, req.Input())
	if err != nil {
		h.fail(w, ctx, "assign", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// HandleApprove handles POST /submissions/{id}/approve. The body is optional.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	var notes string
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		notes = req.Notes
	}

	sub, err := h.service.Approve(ctx, actor, id, notes)
	if err != nil {
		h.fail(w, ctx, "approve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// HandleReject handles POST /submissions/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Reject(ctx, actor, id, req.Reason)
	if err != nil {
		h.fail(w, ctx, "reject", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandleSubmitForApproval(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit_for_approval", h.service.SubmitForApproval)
}

func (h *Handler) HandleSubmitCollaborative(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit_collaborative", h.service.SubmitCollaborativeDraft)
}

func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reopen", h.service.Reopen)
}

func (h *Handler) HandleGetOne(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "get", h.service.GetOne)
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "claim", h.service.Claim)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "delete", h.service.Delete)
}

// HandleList handles GET /submissions.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list", h.service.List)
}

// HandleListPendingApprovals handles GET /submissions/pending-approvals.
func (h *Handler) HandleListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list_pending_approvals", h.service.ListPendingApprovals)
}

// HandleHistory handles GET /submissions/{id}/history?order=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	order, valid := models.ParseHistoryOrder(r.URL.Query().Get("order"))
	if !valid {
		httputil.WriteError(w, badQuery("order"))
		return
	}

	history, err := h.service.History(ctx, actor, id, order)
	if err != nil {
		h.fail(w, ctx, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

// transition serves the body-less operations that return the submission.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, models.Actor, domain.SubmissionID) (*models.Submission, error)) {
	ctx := r.Context()
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	sub, err := fn(ctx, actor, id)
	if err != nil {
		h.fail(w, ctx, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, models.Actor, domain.SubmissionID) (*models.ActionResult, error)) {
	ctx := r.Context()
	actor, id, ok := h.requireTarget(w, r)
	if !ok {
		return
	}

	result, err := fn(ctx, actor, id)
	if err != nil {
		h.fail(w, ctx, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, models.Actor, models.ListFilters) (*models.ListResult, error)) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	filters, err := parseListFilters(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := fn(ctx, actor, filters)
	if err != nil {
		h.fail(w, ctx, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// requireActor builds the trusted actor placed on the context by the auth
// middleware.
func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (models.Actor, bool) {
	actor := models.Actor{
		UserID:   requestcontext.UserID(ctx),
		Role:     requestcontext.Role(ctx),
		ClinicID: requestcontext.ClinicID(ctx),
	}
	if actor.UserID.IsNil() || !actor.Role.IsValid() || actor.ClinicID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return models.Actor{}, false
	}
	return actor, true
}

func (h *Handler) requireTarget(w http.ResponseWriter, r *http.Request) (models.Actor, domain.SubmissionID, bool) {
	actor, ok := h.requireActor(w, r.Context())
	if !ok {
		return models.Actor{}, domain.SubmissionID{}, false
	}
	id, err := domain.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid submission id"))
		return models.Actor{}, domain.SubmissionID{}, false
	}
	return actor, id, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, op string, err error) {
	args := []any{
		"operation", op,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "submission operation failed", args...)
	} else {
		h.logger.WarnContext(ctx, "submission operation rejected", args...)
	}
	httputil.WriteError(w, err)
}
