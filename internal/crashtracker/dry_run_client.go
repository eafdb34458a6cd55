package crashtracker

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
)

type dryRunClient struct{}

func (d *dryRunClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	entry := log.Ctx(ctx)
	if tags := TagsFromContext(ctx); len(tags) > 0 {
		fields := make(log.F, len(tags))
		for k, v := range tags {
			fields[k] = v
		}
		entry = entry.WithFields(fields)
	}
	entry.Errorf("[DRY_RUN Crash Reporter] %+v", err)
}

func (d *dryRunClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.Ctx(ctx).Infof("[DRY_RUN Crash Reporter] %s", msg)
}

func (d *dryRunClient) FlushEvents(time.Duration) bool { return false }

func (d *dryRunClient) Recover() {}

func (d *dryRunClient) Clone() CrashTrackerClient { return &dryRunClient{} }

func NewDryRunClient() *dryRunClient {
	return &dryRunClient{}
}

var _ CrashTrackerClient = (*dryRunClient)(nil)
