// Package config loads the processor and ingress configuration surfaces
// described in SPEC_FULL.md §6. Values come from environment variables,
// falling back to built-in defaults; no command-line flags or config file
// are read. The original's ad-hoc per-field Validator idiom
// (config/config.go's RequireString/RequirePositiveInt/RequireOneOf) is kept
// in spirit but rewritten against this domain's own required fields.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Processor holds everything the worker runtime needs to start: broker
// coordinates, the document store it loads workflows from, and the
// concurrency bound.
type Processor struct {
	KafkaBootstrapServers string
	KafkaGroupID          string
	KafkaTopic            string
	KafkaMessageTimeoutMS int
	MaxConcurrency        int64
	MongoDBURI            string
	MongoDBDatabase       string
	WorkflowIDs           []string
	LogLevel              string
	LogFormat             string
	MetricsPort           int
}

// Ingress holds the HTTP-facing configuration, which is Processor's broker
// and logging surface plus the server bind address.
type Ingress struct {
	ServerHostname        string
	ServerPort            int
	KafkaBootstrapServers string
	KafkaTopic            string
	KafkaMessageTimeoutMS int
	LogLevel              string
	LogFormat             string
	MetricsPort           int
}

// newViper returns a Viper instance bound to the process environment. Each
// key is registered individually with BindEnv rather than relying on
// AutomaticEnv's default key transformation, because SPEC_FULL.md's env var
// names (e.g. KAFKABOOTSTRAPSERVERS) are literal concatenations, not the
// SCREAMING_SNAKE_CASE Viper would derive from a dotted key.
func newViper(keys ...string) *viper.Viper {
	v := viper.New()
	for _, k := range keys {
		v.BindEnv(k)
	}
	return v
}

// LoadProcessor reads processor configuration from the environment,
// applying the defaults named in SPEC_FULL.md §6.
func LoadProcessor() (Processor, error) {
	v := newViper(
		"KAFKABOOTSTRAPSERVERS", "KAFKAGROUPID", "KAFKATOPIC", "KAFKAMESSAGETIMEOUTMS",
		"MAXCONCURRENCY", "MONGODBURI", "MONGODBDATABASE", "WORKFLOWIDS",
		"LOGLEVEL", "LOGFORMAT", "METRICSPORT",
	)
	v.SetDefault("MAXCONCURRENCY", 1)
	v.SetDefault("KAFKAMESSAGETIMEOUTMS", 5000)
	v.SetDefault("LOGLEVEL", "info")
	v.SetDefault("LOGFORMAT", "text")
	v.SetDefault("METRICSPORT", 9090)

	cfg := Processor{
		KafkaBootstrapServers: v.GetString("KAFKABOOTSTRAPSERVERS"),
		KafkaGroupID:          v.GetString("KAFKAGROUPID"),
		KafkaTopic:            v.GetString("KAFKATOPIC"),
		KafkaMessageTimeoutMS: v.GetInt("KAFKAMESSAGETIMEOUTMS"),
		MaxConcurrency:        v.GetInt64("MAXCONCURRENCY"),
		MongoDBURI:            v.GetString("MONGODBURI"),
		MongoDBDatabase:       v.GetString("MONGODBDATABASE"),
		WorkflowIDs:           splitCommaList(v.GetString("WORKFLOWIDS")),
		LogLevel:              v.GetString("LOGLEVEL"),
		LogFormat:             v.GetString("LOGFORMAT"),
		MetricsPort:           v.GetInt("METRICSPORT"),
	}

	val := NewValidator()
	val.RequireString("KAFKABOOTSTRAPSERVERS", cfg.KafkaBootstrapServers)
	val.RequireString("KAFKAGROUPID", cfg.KafkaGroupID)
	val.RequireString("KAFKATOPIC", cfg.KafkaTopic)
	val.RequireString("MONGODBURI", cfg.MongoDBURI)
	val.RequireString("MONGODBDATABASE", cfg.MongoDBDatabase)
	val.RequirePositiveInt("MAXCONCURRENCY", int(cfg.MaxConcurrency))
	val.RequireOneOf("LOGLEVEL", cfg.LogLevel, []string{"debug", "info", "warn", "error"})
	if err := val.Validate(); err != nil {
		return Processor{}, err
	}

	return cfg, nil
}

// LoadIngress reads ingress configuration from the environment.
func LoadIngress() (Ingress, error) {
	v := newViper(
		"SERVERHOSTNAME", "SERVERPORT", "KAFKABOOTSTRAPSERVERS", "KAFKATOPIC",
		"KAFKAMESSAGETIMEOUTMS", "LOGLEVEL", "LOGFORMAT", "METRICSPORT",
	)
	v.SetDefault("SERVERHOSTNAME", "127.0.0.1")
	v.SetDefault("SERVERPORT", 8080)
	v.SetDefault("KAFKAMESSAGETIMEOUTMS", 5000)
	v.SetDefault("LOGLEVEL", "info")
	v.SetDefault("LOGFORMAT", "text")
	v.SetDefault("METRICSPORT", 9091)

	cfg := Ingress{
		ServerHostname:        v.GetString("SERVERHOSTNAME"),
		ServerPort:            v.GetInt("SERVERPORT"),
		KafkaBootstrapServers: v.GetString("KAFKABOOTSTRAPSERVERS"),
		KafkaTopic:            v.GetString("KAFKATOPIC"),
		KafkaMessageTimeoutMS: v.GetInt("KAFKAMESSAGETIMEOUTMS"),
		LogLevel:              v.GetString("LOGLEVEL"),
		LogFormat:             v.GetString("LOGFORMAT"),
		MetricsPort:           v.GetInt("METRICSPORT"),
	}

	val := NewValidator()
	val.RequireString("KAFKABOOTSTRAPSERVERS", cfg.KafkaBootstrapServers)
	val.RequireString("KAFKATOPIC", cfg.KafkaTopic)
	val.RequirePositiveInt("SERVERPORT", cfg.ServerPort)
	if err := val.Validate(); err != nil {
		return Ingress{}, err
	}

	return cfg, nil
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
