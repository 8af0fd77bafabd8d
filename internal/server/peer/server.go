package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/pkg"
	"github.com/rocketscienceinc/battleship-backend/internal/transport"
)

var ErrUnknownAction = errors.New("unknown action")

const (
	receiveRetryInitial = 100 * time.Millisecond
	receiveRetryMax     = 10 * time.Second
)

// newReceiveBackOff - retries a failing inbox for as long as the server runs.
func newReceiveBackOff() *backoff.ExponentialBackOff {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = receiveRetryInitial
	retry.MaxInterval = receiveRetryMax
	retry.MaxElapsedTime = 0
	retry.Reset()

	return retry
}

// Handler - answers one request, the returned value becomes the reply payload.
type Handler func(ctx context.Context, request transport.Envelope) (any, error)

// Server - reads the party's inbox, dispatches requests to handlers and hands
// replies to the request waiting for them.
type Server struct {
	logger  *slog.Logger
	party   entity.Party
	session transport.Session

	handlers map[string]Handler

	mu      sync.Mutex
	waiters map[string]chan transport.Envelope
}

func New(logger *slog.Logger, party entity.Party, session transport.Session) *Server {
	return &Server{
		logger:  logger.With("component", "peer", "party", party),
		party:   party,
		session: session,

		handlers: make(map[string]Handler),
		waiters:  make(map[string]chan transport.Envelope),
	}
}

// Handle - registers the handler of action, call before Run.
func (that *Server) Handle(action string, handler Handler) {
	that.handlers[action] = handler
}

// Run - serves the inbox until ctx is done. Unreadable messages are dropped
// and a failing inbox is retried with backoff.
func (that *Server) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	var wg sync.WaitGroup
	defer wg.Wait()

	retry := newReceiveBackOff()

	for {
		envelope, err := that.session.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if errors.Is(err, transport.ErrMalformedEnvelope) {
				log.Info("dropping malformed message", "error", err)
				continue
			}

			wait := retry.NextBackOff()
			log.Error("failed to receive message, retrying", "error", err, "retry_in", wait)

			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		retry.Reset()

		if envelope.Reply {
			that.deliver(log, envelope)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			that.serve(ctx, envelope)
		}()
	}
}

func (that *Server) deliver(log *slog.Logger, envelope transport.Envelope) {
	that.mu.Lock()
	waiter, ok := that.waiters[envelope.Session]
	delete(that.waiters, envelope.Session)
	that.mu.Unlock()

	if !ok {
		log.Info("dropping reply nobody waits for", "action", envelope.Action, "from", envelope.From)
		return
	}

	waiter <- envelope
}

func (that *Server) serve(ctx context.Context, request transport.Envelope) {
	log := that.logger.With("method", "serve", "action", request.Action, "from", request.From)

	var (
		result any
		err    error
	)

	handler, ok := that.handlers[request.Action]
	if ok {
		result, err = handler(ctx, request)
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownAction, request.Action)
	}

	if err != nil {
		log.Info("request refused", "error", err)
	}

	// notices carry no session and expect no answer
	if request.Session == "" {
		return
	}

	reply, marshalErr := transport.NewEnvelope(request.Action, request.Session, that.party, request.From, result)
	if marshalErr != nil {
		log.Error("failed to build reply", "error", marshalErr)
		reply = transport.Envelope{Action: request.Action, Session: request.Session}
		err = marshalErr
	}

	reply.Reply = true
	if err != nil {
		reply.Refusal = RefusalCode(err)
		reply.Payload = nil
	}

	if err = that.session.Send(ctx, request.From, reply); err != nil {
		log.Error("failed to send reply", "error", err)
	}
}

// Request - sends a request to another party and waits for its reply. A
// refusal comes back as an error matching the refusal code.
func (that *Server) Request(ctx context.Context, to entity.Party, action string, payload any) (transport.Envelope, error) {
	request, err := transport.NewEnvelope(action, pkg.GenerateNewSessionID(), that.party, to, payload)
	if err != nil {
		return transport.Envelope{}, err
	}

	waiter := make(chan transport.Envelope, 1)

	that.mu.Lock()
	that.waiters[request.Session] = waiter
	that.mu.Unlock()

	defer func() {
		that.mu.Lock()
		delete(that.waiters, request.Session)
		that.mu.Unlock()
	}()

	if err = that.session.Send(ctx, to, request); err != nil {
		if ctx.Err() != nil {
			return transport.Envelope{}, fmt.Errorf("%w: %w", apperror.ErrPeerUnresponsive, err)
		}

		return transport.Envelope{}, fmt.Errorf("failed to send %s to %s: %w", action, to, err)
	}

	select {
	case reply := <-waiter:
		if reply.Refusal != "" {
			return reply, RefusalError(reply.Refusal)
		}

		return reply, nil
	case <-ctx.Done():
		return transport.Envelope{}, fmt.Errorf("%w: %s from %s: %w", apperror.ErrPeerUnresponsive, action, to, ctx.Err())
	}
}

// Notify - sends a one-way notice.
func (that *Server) Notify(ctx context.Context, to entity.Party, action string, payload any) error {
	notice, err := transport.NewEnvelope(action, "", that.party, to, payload)
	if err != nil {
		return err
	}

	if err = that.session.Send(ctx, to, notice); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", action, to, err)
	}

	return nil
}
