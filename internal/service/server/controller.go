package server

import (
	"context"
	"strings"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/logger"
)

// StartCommand is the only text that turns the buzzer on.
const StartCommand = "start"

// SessionObserver is told about session lifecycle and applied commands.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
	CommandApplied(sounding bool)
}

// Controller maps control-channel text to the activation state.
// It is the only writer of the state.
type Controller struct {
	state     *buzzer.State
	acceptNUL bool
	observer  SessionObserver
}

// NewController returns a controller writing to state. observer may be nil.
func NewController(state *buzzer.State, acceptNUL bool, observer SessionObserver) *Controller {
	return &Controller{
		state:     state,
		acceptNUL: acceptNUL,
		observer:  observer,
	}
}

// MapCommand returns Sounding for "start" and Silent for anything else.
// With acceptNUL one trailing NUL byte is ignored.
func MapCommand(command string, acceptNUL bool) buzzer.Activation {
	if acceptNUL {
		command = strings.TrimSuffix(command, "\x00")
	}

	if command == StartCommand {
		return buzzer.Sounding
	}

	return buzzer.Silent
}

// OnOpen implements ws.Handler. Opening a session never changes activation.
func (c *Controller) OnOpen(context.Context, *buzzer.Session) {
	if c.observer != nil {
		c.observer.SessionOpened()
	}
}

// OnCommand implements ws.Handler.
func (c *Controller) OnCommand(ctx context.Context, _ *buzzer.Session, command string) {
	activation := MapCommand(command, c.acceptNUL)

	if c.state.Set(activation) {
		logger.InfoKV(ctx, "Activation changed", "activation", activation.String())
	} else {
		logger.DebugKV(ctx, "Activation unchanged", "activation", activation.String())
	}

	if c.observer != nil {
		c.observer.CommandApplied(activation == buzzer.Sounding)
	}
}

// OnClose implements ws.Handler. Closing a session never changes activation.
func (c *Controller) OnClose(context.Context, *buzzer.Session) {
	if c.observer != nil {
		c.observer.SessionClosed()
	}
}
