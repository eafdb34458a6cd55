package crashtracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
)

func Test_DryRunClient(t *testing.T) {
	client := NewDryRunClient()

	t.Run("LogAndReportErrors", func(t *testing.T) {
		buf := new(strings.Builder)
		log.DefaultLogger.SetOutput(buf)

		ctx := WithTags(context.Background(), map[string]string{"conversion_id": "conv-7"})
		client.LogAndReportErrors(ctx, errors.New("schema exists"), "provisioning school_greenwood")

		assert.Contains(t, buf.String(), "provisioning school_greenwood: schema exists")
		assert.Contains(t, buf.String(), "conv-7")
	})

	t.Run("LogAndReportMessages", func(t *testing.T) {
		buf := new(strings.Builder)
		log.DefaultLogger.SetOutput(buf)
		log.DefaultLogger.SetLevel(log.InfoLevel)

		client.LogAndReportMessages(context.Background(), "sweep finished")
		assert.Contains(t, buf.String(), "[DRY_RUN Crash Reporter] sweep finished")
	})

	t.Run("FlushEvents and Clone", func(t *testing.T) {
		assert.False(t, client.FlushEvents(time.Second))
		assert.IsType(t, &dryRunClient{}, client.Clone())
	})
}
