package crashtracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// sentryHub is the part of *sentry.Hub the client uses.
type sentryHub interface {
	CaptureException(exception error) *sentry.EventID
	CaptureMessage(message string) *sentry.EventID
	WithScope(f func(scope *sentry.Scope))
	Clone() *sentry.Hub
	Flush(timeout time.Duration) bool
	Recover(err interface{}) *sentry.EventID
}

var _ sentryHub = (*sentry.Hub)(nil)

type sentryClient struct {
	hub sentryHub
}

// LogAndReportErrors logs err and captures it with the tags found in ctx. Canceled requests are not reported.
func (s *sentryClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if errors.Is(err, context.Canceled) {
		log.Ctx(ctx).Warn("context canceled, not reporting error to sentry")
		return
	}
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).WithStack(err).Errorf("%+v", err)

	tags := TagsFromContext(ctx)
	if len(tags) == 0 {
		s.hub.CaptureException(err)
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

func (s *sentryClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.Ctx(ctx).Info(msg)
	s.hub.CaptureMessage(msg)
}

func (s *sentryClient) FlushEvents(waitTime time.Duration) bool {
	return s.hub.Flush(waitTime)
}

// Recover captures a panic. It must be deferred directly.
func (s *sentryClient) Recover() {
	if err := recover(); err != nil {
		s.hub.Recover(err)
	}
}

// Clone returns a client with its own hub, for use in another goroutine.
func (s *sentryClient) Clone() CrashTrackerClient {
	return &sentryClient{hub: s.hub.Clone()}
}

func NewSentryClient(opts CrashTrackerOptions) (*sentryClient, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Release:     opts.GitCommit,
		Environment: opts.Environment,
		ServerName:  opts.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up sentry: %w", err)
	}
	return &sentryClient{hub: sentry.CurrentHub()}, nil
}

var _ CrashTrackerClient = (*sentryClient)(nil)
