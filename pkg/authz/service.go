package authz

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/pkg/serrors"
)

const (
	ModeDisabled = "disabled"
	ModeShadow   = "shadow"
	ModeEnforce  = "enforce"
)

// Request is one authorization question: may subject perform action on object?
type Request struct {
	Subject string
	Object  string
	Action  string
}

type Config struct {
	ModelPath  string
	PolicyPath string
	Mode       string
	Logger     *logrus.Logger
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("authz: model path is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("authz: policy path is required")
	}
	switch c.Mode {
	case "", ModeDisabled, ModeShadow, ModeEnforce:
	default:
		return fmt.Errorf("authz: invalid mode %q", c.Mode)
	}
	return nil
}

var ErrForbidden = serrors.NewError("AUTHZ_FORBIDDEN", "permission denied", "Authorization.PermissionDenied")

func forbiddenError(req Request) error {
	return ErrForbidden.WithTemplateData(map[string]string{
		"subject": req.Subject,
		"object":  req.Object,
		"action":  req.Action,
	})
}

// Service enforces authorization decisions through a casbin enforcer backed
// by file-based model and policy.
type Service struct {
	enforcer *casbin.Enforcer
	mode     string
	logger   *logrus.Entry
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeEnforce
	}

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: failed to load policies: %w", err)
	}

	return &Service{enforcer: enf, mode: mode, logger: logger}, nil
}

// Check answers the request without enforcing it.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	_ = ctx
	allowed, err := s.enforcer.Enforce(req.Subject, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return allowed, nil
}

// Authorize returns ErrForbidden when the request is denied in enforce mode.
// Shadow mode logs denials without failing the caller.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	switch s.mode {
	case ModeDisabled:
		return nil
	case ModeShadow:
		allowed, err := s.Check(ctx, req)
		if err != nil {
			return err
		}
		if !allowed {
			s.logger.WithFields(logrus.Fields{
				"subject": req.Subject,
				"object":  req.Object,
				"action":  req.Action,
			}).Warn("authz shadow deny")
		}
		return nil
	default:
		allowed, err := s.Check(ctx, req)
		if err != nil {
			return err
		}
		if !allowed {
			return forbiddenError(req)
		}
		return nil
	}
}

// ObjectName builds the canonical object identifier for policies.
func ObjectName(module, resource string) string {
	return module + ":" + resource
}
