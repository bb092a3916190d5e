package config

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ResolveAPIKey returns the historical-endpoint credential. In prod it is
// read from AWS Parameter Store; otherwise the config-file value is used.
func (cfg *HistoricalConfig) ResolveAPIKey(env string) string {
	if env == "prod" {
		if key := getParameterStoreValue("POOL_MONITOR_INDEXER_API_KEY", true); key != "" {
			return key
		}
	}
	return cfg.APIKey
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	baseCtx := context.Background()
	ctxWithTimeout, cancel := context.WithTimeout(baseCtx, 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
