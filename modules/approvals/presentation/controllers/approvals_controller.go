package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/permissions"
	"github.com/benefia/approvals/modules/approvals/presentation/controllers/dtos"
	"github.com/benefia/approvals/modules/approvals/services"
	"github.com/benefia/approvals/pkg/authz"
	"github.com/benefia/approvals/pkg/composables"
	"github.com/benefia/approvals/pkg/configuration"
	"github.com/benefia/approvals/pkg/httpapi"
	"github.com/benefia/approvals/pkg/serrors"
)

// ApprovalsAPIController exposes the approval workflow over JSON. The
// gateway authenticates callers upstream; this controller trusts the
// forwarded identity header and enforces authorization per route.
type ApprovalsAPIController struct {
	svc      *services.RequestService
	authz    *authz.Service
	validate *validator.Validate
	cfg      *configuration.Configuration
	log      *logrus.Logger
	basePath string
}

func NewApprovalsAPIController(
	svc *services.RequestService,
	authzSvc *authz.Service,
	cfg *configuration.Configuration,
	log *logrus.Logger,
) *ApprovalsAPIController {
	return &ApprovalsAPIController{
		svc:      svc,
		authz:    authzSvc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		log:      log,
		basePath: "/api/v1/approvals",
	}
}

func (c *ApprovalsAPIController) Key() string {
	return c.basePath
}

func (c *ApprovalsAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(c.requireUser)

	router.HandleFunc("/requests", c.submit).Methods(http.MethodPost)
	router.HandleFunc("/requests", c.list).Methods(http.MethodGet)
	router.HandleFunc("/requests/pending", c.pending).Methods(http.MethodGet)
	router.HandleFunc("/requests/code/{code}", c.getByCode).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}", c.getByID).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}/decision", c.decide).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}/cancel", c.cancel).Methods(http.MethodPost)
	router.HandleFunc("/requirements/{actionType}", c.requirement).Methods(http.MethodGet)
}

// requireUser lifts the gateway-forwarded user id into the context.
func (c *ApprovalsAPIController) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(c.cfg.UserIDHeader)
		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			c.writeError(w, errors.New("missing caller identity"), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(composables.WithUserID(r.Context(), userID)))
	})
}

func (c *ApprovalsAPIController) submit(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionCreate); err != nil {
		c.writeServiceError(w, err)
		return
	}

	var dto dtos.SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := c.validate.Struct(&dto); err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}

	created, err := c.svc.Submit(r.Context(), services.SubmitParams{
		ActionType:       dto.ActionType,
		RequesterID:      userID,
		Justification:    dto.Justification,
		Payload:          dto.ToPayload(),
		Credential:       r.Header.Get("Authorization"),
		ApprovalDeadline: dto.Deadline,
		Attachments:      dto.ToAttachments(),
	})
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	asgs, err := c.svc.Assignments(r.Context(), created.ID)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewRequestResponse(created, asgs))
}

func (c *ApprovalsAPIController) list(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionRead); err != nil {
		c.writeServiceError(w, err)
		return
	}

	params := &request.FindParams{
		Status:     request.Status(r.URL.Query().Get("status")),
		ActionType: r.URL.Query().Get("action_type"),
		Limit:      c.limit(r),
		Offset:     c.offset(r),
	}
	if r.URL.Query().Get("mine") == "true" {
		params.Requester = userID
	}

	items, total, err := c.svc.List(r.Context(), params)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	resp := &dtos.ListRequestsResponse{Total: total, Items: make([]*dtos.RequestResponse, 0, len(items))}
	for _, req := range items {
		resp.Items = append(resp.Items, dtos.NewRequestResponse(req, nil))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ApprovalsAPIController) pending(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionDecide); err != nil {
		c.writeServiceError(w, err)
		return
	}

	items, err := c.svc.PendingForApprover(r.Context(), userID)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	resp := &dtos.ListRequestsResponse{Total: int64(len(items)), Items: make([]*dtos.RequestResponse, 0, len(items))}
	for _, req := range items {
		resp.Items = append(resp.Items, dtos.NewRequestResponse(req, nil))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ApprovalsAPIController) getByID(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionRead); err != nil {
		c.writeServiceError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}

	req, err := c.svc.GetByID(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	asgs, err := c.svc.Assignments(r.Context(), req.ID)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRequestResponse(req, asgs))
}

func (c *ApprovalsAPIController) getByCode(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionRead); err != nil {
		c.writeServiceError(w, err)
		return
	}

	req, err := c.svc.GetByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	asgs, err := c.svc.Assignments(r.Context(), req.ID)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRequestResponse(req, asgs))
}

func (c *ApprovalsAPIController) decide(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionDecide); err != nil {
		c.writeServiceError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}

	var dto dtos.DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := c.validate.Struct(&dto); err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}

	updated, err := c.svc.RecordDecision(r.Context(), id, userID, assignment.Decision{
		Approved:      dto.Approved,
		Justification: dto.Justification,
		Attachments:   dto.Attachments,
	})
	if err != nil && (updated == nil ||
		(!errors.Is(err, services.ErrExecution) &&
			!errors.Is(err, services.ErrValidation) &&
			!errors.Is(err, services.ErrMissingAuthorization))) {
		c.writeServiceError(w, err)
		return
	}
	// an execution failure after a durable approval still returns the
	// request, now ERROR_EXECUTED, with the failure code attached
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	asgs, aerr := c.svc.Assignments(r.Context(), id)
	if aerr != nil {
		c.writeServiceError(w, aerr)
		return
	}
	_ = httpapi.WriteJSON(w, status, dtos.NewRequestResponse(updated, asgs))
}

func (c *ApprovalsAPIController) cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionCancel); err != nil {
		c.writeServiceError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, err, http.StatusBadRequest)
		return
	}

	updated, err := c.svc.Cancel(r.Context(), id, userID)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewRequestResponse(updated, nil))
}

func (c *ApprovalsAPIController) requirement(w http.ResponseWriter, r *http.Request) {
	userID, err := composables.UseUserID(r.Context())
	if err != nil {
		c.writeError(w, err, http.StatusUnauthorized)
		return
	}
	if err := c.authorize(r, userID, permissions.ActionRead); err != nil {
		c.writeServiceError(w, err)
		return
	}

	actionType := mux.Vars(r)["actionType"]
	pol, gated, err := c.svc.RequiresApproval(r.Context(), actionType)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	resp := &dtos.RequirementResponse{ActionType: actionType, RequiresApproval: gated}
	if gated {
		resp.Strategy = string(pol.Strategy)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ApprovalsAPIController) authorize(r *http.Request, userID uuid.UUID, action string) error {
	return c.authz.Authorize(r.Context(), authz.Request{
		Subject: userID.String(),
		Object:  permissions.ObjectRequests,
		Action:  action,
	})
}

func (c *ApprovalsAPIController) limit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return c.cfg.PageSize
	}
	if limit > c.cfg.MaxPageSize {
		return c.cfg.MaxPageSize
	}
	return limit
}

func (c *ApprovalsAPIController) offset(r *http.Request) int {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func (c *ApprovalsAPIController) writeServiceError(w http.ResponseWriter, err error) {
	c.writeError(w, err, statusForError(err))
}

func (c *ApprovalsAPIController) writeError(w http.ResponseWriter, err error, status int) {
	code := serrors.Code(err)
	if code == "" {
		code = "INTERNAL"
	}
	if status >= http.StatusInternalServerError {
		c.log.WithError(err).Error("approvals api error")
	}
	_ = httpapi.WriteError(w, status, code, err.Error(), nil)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateRequest),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrAlreadyDecided):
		return http.StatusConflict
	case errors.Is(err, services.ErrSelfApprovalForbidden),
		errors.Is(err, services.ErrCancelForbidden),
		errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrMissingAuthorization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrExecution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
