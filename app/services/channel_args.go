package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

// LinkedIn automation actions
const (
	LinkedInActionConnect = "connect"
	LinkedInActionMessage = "message"
)

// ChannelArgs are the typed, validated per-channel dispatch parameters
type ChannelArgs interface {
	Channel() models.Channel
}

// LinkedInArgs parameterizes a LinkedIn automation run
type LinkedInArgs struct {
	SessionCookie string `validate:"required"`
	ProfileURL    string `validate:"required,url"`
	Action        string `validate:"required,oneof=connect message"`
}

func (LinkedInArgs) Channel() models.Channel { return models.ChannelLinkedIn }

// EmailArgs parameterizes an email send
type EmailArgs struct {
	To       string `validate:"required,email"`
	Subject  string `validate:"required,max=255"`
	FromName string `validate:"omitempty,max=128"`
}

func (EmailArgs) Channel() models.Channel { return models.ChannelEmail }

// SMSArgs parameterizes an SMS send
type SMSArgs struct {
	To     string `validate:"required,e164"`
	Sender string `validate:"omitempty,max=32"`
}

func (SMSArgs) Channel() models.Channel { return models.ChannelSMS }

var (
	argsValidatorOnce sync.Once
	argsValidator     *validator.Validate
)

func getArgsValidator() *validator.Validate {
	argsValidatorOnce.Do(func() {
		argsValidator = validator.New()
	})
	return argsValidator
}

// ValidateArgs checks args against the adapter's channel. Failures are permanent.
func ValidateArgs(ch models.Channel, args ChannelArgs) error {
	if args == nil {
		return Permanent(CodeInvalidArgument, errors.New("missing channel args"))
	}
	if args.Channel() != ch {
		return Permanent(CodeInvalidArgument, fmt.Errorf("args for %s passed to %s adapter", args.Channel(), ch))
	}
	if err := getArgsValidator().Struct(args); err != nil {
		return Permanent(CodeInvalidArgument, err)
	}
	if email, ok := args.(EmailArgs); ok {
		if err := checkmail.ValidateFormat(email.To); err != nil {
			return Permanent(CodeInvalidArgument, fmt.Errorf("invalid recipient %q: %w", email.To, err))
		}
	}
	return nil
}

// ArgDefaults carries provider-wide values needed to build args
type ArgDefaults struct {
	LinkedInSessionCookie string
	EmailFromName         string
	SMSSender             string
}

// BuildArgs derives the dispatch args for a step and target
func BuildArgs(stepType models.StepType, subject *string, target Target, defaults ArgDefaults) (ChannelArgs, error) {
	switch stepType {
	case models.StepTypeConnectionRequest, models.StepTypeMessage:
		action := LinkedInActionMessage
		if stepType == models.StepTypeConnectionRequest {
			action = LinkedInActionConnect
		}
		return LinkedInArgs{
			SessionCookie: defaults.LinkedInSessionCookie,
			ProfileURL:    target.LinkedInURL,
			Action:        action,
		}, nil
	case models.StepTypeEmail:
		s := ""
		if subject != nil {
			s = strings.TrimSpace(*subject)
		}
		return EmailArgs{To: target.Email, Subject: s, FromName: defaults.EmailFromName}, nil
	case models.StepTypeSMS:
		return SMSArgs{To: target.Phone, Sender: defaults.SMSSender}, nil
	default:
		return nil, Permanent(CodeUnsupportedChannel, fmt.Errorf("unsupported step type %q", stepType))
	}
}
