package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/domain/events"
)

// actionHandler validates the stored payload for one action type and shapes
// the replay call. Every gated action type has exactly one handler;
// registration is static so an unknown type fails before any I/O.
type actionHandler func(req *request.Request) (*ReplayRequest, error)

// ExecutorService replays the originally intercepted operation against the
// downstream API once a request reaches APPROVED. The execution outcome is
// recorded in its own transaction: the approval is already durable and is
// never rolled back by a failed replay.
type ExecutorService struct {
	tx        Transactor
	requests  request.Repository
	client    DownstreamActionAPI
	publisher EventPublisher
	log       *logrus.Logger
	handlers  map[string]actionHandler
	now       func() time.Time
}

func NewExecutorService(
	tx Transactor,
	requests request.Repository,
	client DownstreamActionAPI,
	publisher EventPublisher,
	log *logrus.Logger,
) *ExecutorService {
	s := &ExecutorService{
		tx:        tx,
		requests:  requests,
		client:    client,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
	s.handlers = map[string]actionHandler{
		request.ActionCancelBenefitRequest: s.replayHandler(http.MethodDelete, true),
		request.ActionModifyCriticalData:   s.replayHandler(http.MethodPut, false),
		request.ActionDeleteRecord:         s.replayHandler(http.MethodDelete, true),
		request.ActionApprovePayment:       s.replayHandler(http.MethodPost, false),
		request.ActionTransferBenefit:      s.replayHandler(http.MethodPost, true),
		request.ActionSuspendBenefit:       s.replayHandler(http.MethodPost, true),
		request.ActionReactivateBenefit:    s.replayHandler(http.MethodPost, true),
		request.ActionChangeBenefitAmount:  s.replayHandler(http.MethodPatch, true),
	}
	return s
}

// Execute runs the approved action and marks the request EXECUTED or
// ERROR_EXECUTED. The execution error, if any, is returned alongside the
// updated request so callers can surface it; the request passed in must
// already be APPROVED.
func (s *ExecutorService) Execute(ctx context.Context, req *request.Request) (*request.Request, error) {
	execErr := s.run(ctx, req)

	var updated *request.Request
	outcomeErr := s.tx.InTx(ctx, func(txCtx context.Context) error {
		var err error
		now := s.now()
		if execErr == nil {
			updated, err = s.requests.MarkExecuted(txCtx, req.ID, now)
			if err != nil {
				return err
			}
			return s.publisher.Publish(txCtx, &events.RequestEvent{
				Topic:   events.TopicRequestExecuted,
				Request: updated,
			})
		}
		updated, err = s.requests.MarkExecutionError(txCtx, req.ID, now, execErr.Error())
		if err != nil {
			return err
		}
		return s.publisher.Publish(txCtx, &events.RequestEvent{
			Topic:   events.TopicRequestErrorExecution,
			Request: updated,
		})
	})
	if outcomeErr != nil {
		// The replay may have happened; losing the outcome record is worse
		// than the replay failing, so surface both.
		s.log.WithError(outcomeErr).WithField("request_id", req.ID).
			Error("approvals: failed to record execution outcome")
		if execErr != nil {
			return nil, fmt.Errorf("%w; %w", execErr, outcomeErr)
		}
		return nil, outcomeErr
	}

	if execErr != nil {
		return updated, execErr
	}
	return updated, nil
}

func (s *ExecutorService) run(ctx context.Context, req *request.Request) error {
	handler, ok := s.handlers[req.ActionType]
	if !ok {
		return fmt.Errorf("%w: no execution handler for action type %q", ErrValidation, req.ActionType)
	}
	replay, err := handler(req)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(ctx, replay)
	if err != nil {
		return errors.Wrapf(ErrExecution, "downstream call failed: %v", err)
	}
	if !resp.Success() {
		return errors.Wrapf(ErrExecution, "downstream returned %d: %s",
			resp.StatusCode, truncateBody(resp.Body))
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"action_type": req.ActionType,
		"status_code": resp.StatusCode,
	}).Info("approvals: downstream execution succeeded")
	return nil
}

// replayHandler builds the generic replay for one action type. defaultMethod
// applies only when the captured payload carries none; requireTarget makes
// the handler reject payloads without a target item.
func (s *ExecutorService) replayHandler(defaultMethod string, requireTarget bool) actionHandler {
	return func(req *request.Request) (*ReplayRequest, error) {
		p := req.Payload
		if strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("%w: payload url is empty", ErrValidation)
		}
		if requireTarget && (p.TargetItemID == nil || strings.TrimSpace(*p.TargetItemID) == "") {
			return nil, fmt.Errorf("%w: payload target item id is empty", ErrValidation)
		}
		if strings.TrimSpace(req.Credential) == "" {
			return nil, ErrMissingAuthorization
		}

		method := strings.ToUpper(strings.TrimSpace(p.Method))
		if method == "" {
			method = defaultMethod
		}

		headers := make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			if strings.EqualFold(k, "Authorization") {
				continue
			}
			headers[k] = v
		}

		return &ReplayRequest{
			Method:        method,
			URL:           expandParams(p.URL, p.Params),
			Query:         p.Query,
			Headers:       headers,
			Body:          StripApprovalMetadata(p.Body),
			Authorization: req.Credential,
		}, nil
	}
}

// expandParams substitutes :name path placeholders with captured values.
func expandParams(url string, params map[string]string) string {
	for k, v := range params {
		url = strings.ReplaceAll(url, ":"+k, v)
	}
	return url
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
