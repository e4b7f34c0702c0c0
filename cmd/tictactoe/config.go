package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage backends selectable with --store.
const (
	storeMemory   = "memory"
	storePostgres = "postgres"
	storeRedis    = "redis"
	storeDynamo   = "dynamodb"
)

type Config struct {
	bind             string
	port             int
	store            string
	databaseURL      string
	redisAddr        string
	redisPassword    string
	dynamoTable      string
	awsRegion        string
	dynamoEndpoint   string
	turnTimeout      time.Duration
	storeTimeout     time.Duration
	subscriberBuffer int
	publicURL        string
	verbose          bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.store {
	case storeMemory:
	case storePostgres:
		if c.databaseURL == "" {
			return errors.New("--database-url is required for the postgres store")
		}
	case storeRedis:
		if c.redisAddr == "" {
			return errors.New("--redis-addr is required for the redis store")
		}
	case storeDynamo:
		if c.dynamoTable == "" || c.awsRegion == "" {
			return errors.New("--dynamo-table and --aws-region are required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, postgres, redis or dynamodb)", c.store)
	}
	if c.turnTimeout <= 0 {
		return fmt.Errorf("turn timeout must be positive: %s", c.turnTimeout)
	}
	if c.storeTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive: %s", c.storeTimeout)
	}
	if c.subscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1: %d", c.subscriberBuffer)
	}
	if c.publicURL != "" {
		u, err := url.Parse(c.publicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url: %q", c.publicURL)
		}
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TICTACTOE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tictactoe",
		Short:         "Two-player tic-tac-toe server with live game updates.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TICTACTOE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TICTACTOE_PORT)")
	fs.StringVar(&cfg.store, "store", storeMemory, "storage backend: memory, postgres, redis or dynamodb (env: TICTACTOE_STORE)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string (env: TICTACTOE_DATABASE_URL)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address (env: TICTACTOE_REDIS_ADDR)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: TICTACTOE_REDIS_PASSWORD)")
	fs.StringVar(&cfg.dynamoTable, "dynamo-table", "tictactoe", "dynamodb table name (env: TICTACTOE_DYNAMO_TABLE)")
	fs.StringVar(&cfg.awsRegion, "aws-region", "us-east-1", "aws region for dynamodb (env: TICTACTOE_AWS_REGION)")
	fs.StringVar(&cfg.dynamoEndpoint, "dynamo-endpoint", "", "override dynamodb endpoint, e.g. for dynamodb-local (env: TICTACTOE_DYNAMO_ENDPOINT)")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", 10*time.Second, "time a player may hold the turn before it is passed (env: TICTACTOE_TURN_TIMEOUT)")
	fs.DurationVar(&cfg.storeTimeout, "store-timeout", 3*time.Second, "maximum latency of a single store call (env: TICTACTOE_STORE_TIMEOUT)")
	fs.IntVar(&cfg.subscriberBuffer, "subscriber-buffer", 16, "events queued per live subscriber before the oldest is dropped (env: TICTACTOE_SUBSCRIBER_BUFFER)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally visible base url used in share links (env: TICTACTOE_PUBLIC_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TICTACTOE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tictactoe v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
