package abi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/pkg/client"
	"github.com/jmerrifield20/nnas/pkg/device"
)

// Return codes for the integer-returning calls.
const (
	CodeExists       int32 = 1
	CodeDoesNotExist int32 = 0
	CodeError        int32 = -1
)

// ErrInvalidHandle is recorded when a call names a handle that was never
// issued or has been destroyed.
var ErrInvalidHandle = errors.New("invalid client handle")

// Service implements the exported calls on top of a Registry of clients.
// Every method is safe for concurrent use and recovers from panics so that
// nothing unwinds into foreign frames.
type Service struct {
	clients *Registry[*client.Client]
	logger  *zap.Logger
	opts    []client.Option

	mu           sync.Mutex
	constructErr string // last NewClient failure, shared by all callers
}

// NewService returns a Service whose clients are built with opts in
// addition to the per-call arguments.
func NewService(logger *zap.Logger, opts ...client.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		clients: NewRegistry[*client.Client](),
		logger:  logger,
		opts:    append([]client.Option{client.WithLogger(logger)}, opts...),
	}
}

// Construct builds a client and returns its handle. Failures are returned
// to the caller only and leave LastConstructError untouched, so concurrent
// callers each see their own reason.
func (s *Service) Construct(endpoint, certPath, keyPath string, profile device.Profile) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in newClient", zap.Any("panic", r))
			h, err = 0, fmt.Errorf("internal error: %v", r)
		}
	}()

	c, err := client.New(endpoint, certPath, keyPath, profile, s.opts...)
	if err != nil {
		s.logger.Warn("client construction failed", zap.String("endpoint", endpoint), zap.Error(err))
		return 0, err
	}
	h = s.clients.Register(c)
	s.logger.Debug("client registered", zap.Uint64("handle", uint64(h)), zap.String("endpoint", endpoint))
	return h, nil
}

// NewClient is Construct for callers that cannot receive an error. It
// returns 0 on failure and records the reason for LastConstructError.
func (s *Service) NewClient(endpoint, certPath, keyPath string, profile device.Profile) Handle {
	h, err := s.Construct(endpoint, certPath, keyPath, profile)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.constructErr = err.Error()
		return 0
	}
	s.constructErr = ""
	return h
}

// LastConstructError returns why the most recent NewClient call failed, or
// "" if it succeeded. There is one slot per Service and the last writer
// wins: with concurrent NewClient calls a caller may read another call's
// reason. Use Construct when that matters.
func (s *Service) LastConstructError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constructErr
}

// LookupUser returns CodeExists, CodeDoesNotExist or CodeError. On error the
// reason is recorded for LastError.
func (s *Service) LookupUser(h Handle, username string) (code int32) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in lookupUser", zap.Uint64("handle", uint64(h)), zap.Any("panic", r))
			s.clients.SetError(h, fmt.Errorf("internal error: %v", r))
			code = CodeError
		}
	}()

	c, ok := s.clients.Lookup(h)
	if !ok {
		return CodeError
	}
	res := c.DoesUserExist(context.Background(), username)
	s.clients.SetError(h, res.Err)
	switch res.Outcome {
	case client.OutcomeExists:
		return CodeExists
	case client.OutcomeDoesNotExist:
		return CodeDoesNotExist
	}
	return CodeError
}

// DoesUserExist returns 1 only for a confirmed account and 0 otherwise,
// including on error. Use LookupUser to tell the two apart.
func (s *Service) DoesUserExist(h Handle, username string) int32 {
	if s.LookupUser(h, username) == CodeExists {
		return 1
	}
	return 0
}

// LastError returns the error recorded by the last lookup on h. Unknown
// handles report ErrInvalidHandle.
func (s *Service) LastError(h Handle) string {
	if _, ok := s.clients.Lookup(h); !ok {
		return ErrInvalidHandle.Error()
	}
	return s.clients.LastError(h)
}

// Destroy releases h and closes its client. It reports whether h was live.
func (s *Service) Destroy(h Handle) bool {
	c, ok := s.clients.Release(h)
	if !ok {
		return false
	}
	c.Close()
	s.logger.Debug("client released", zap.Uint64("handle", uint64(h)))
	return true
}

// Live returns the number of clients not yet destroyed.
func (s *Service) Live() int { return s.clients.Len() }
