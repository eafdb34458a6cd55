package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/message"
)

func Test_SchoolRoutingOptions_ValidateFlags(t *testing.T) {
	assert.EqualError(t, (&SchoolRoutingOptions{}).ValidateFlags(),
		"invalid config. Please specify --all to run the command for all school schemas or specify --database-name to run it for a single school schema")
	assert.NoError(t, (&SchoolRoutingOptions{All: true}).ValidateFlags())
	assert.NoError(t, (&SchoolRoutingOptions{DatabaseName: "school_greenwood"}).ValidateFlags())
}

func Test_DBPoolOptions_PoolConfig(t *testing.T) {
	opts := DBPoolOptions{
		DBMaxOpenConns:           30,
		DBMaxIdleConns:           5,
		DBConnMaxIdleTimeSeconds: 10,
		DBConnMaxLifetimeSeconds: 300,
	}

	assert.Equal(t, db.PoolConfig{
		MaxOpenConns:    30,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 10 * time.Second,
		ConnMaxLifetime: 5 * time.Minute,
	}, opts.PoolConfig())
}

func Test_DBPoolConfigOptions_defaults(t *testing.T) {
	opts := DBPoolOptions{}
	defaults := map[string]interface{}{}
	for _, co := range DBPoolConfigOptions(&opts) {
		defaults[co.Name] = co.FlagDefault
	}

	assert.Equal(t, map[string]interface{}{
		"db-max-open-conns":             db.DefaultPoolConfig.MaxOpenConns,
		"db-max-idle-conns":             db.DefaultPoolConfig.MaxIdleConns,
		"db-conn-max-idle-time-seconds": int(db.DefaultPoolConfig.ConnMaxIdleTime.Seconds()),
		"db-conn-max-lifetime-seconds":  int(db.DefaultPoolConfig.ConnMaxLifetime.Seconds()),
	}, defaults)
}

func Test_messengerConfigOptions_areOptional(t *testing.T) {
	opts := message.MessengerOptions{}
	options := append(TwilioConfigOptions(&opts), AWSConfigOptions(&opts)...)
	require.Len(t, options, 10)

	for _, co := range options {
		assert.False(t, co.Required, co.Name)
		assert.IsType(t, new(string), co.ConfigKey, co.Name)
	}
}
