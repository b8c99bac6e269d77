package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// parameterStore is swapped out in tests.
var parameterStore = getParameterStoreValue

// ResolveRPCURL returns the RPC endpoint to use. In prod, when RPCURLParameter
// is set, the URL (which usually embeds a provider API key) is read from SSM.
func (d DriftConfig) ResolveRPCURL(ctx context.Context, env string) (string, error) {
	if env != "prod" || d.RPCURLParameter == "" {
		if d.RPCURL == "" {
			return "", errors.New("no rpc url configured")
		}
		return d.RPCURL, nil
	}

	url, err := parameterStore(ctx, d.RPCURLParameter, true)
	if err != nil {
		return "", fmt.Errorf("resolve rpc url from %s: %w", d.RPCURLParameter, err)
	}
	if url == "" {
		return "", fmt.Errorf("parameter %s is empty", d.RPCURLParameter)
	}
	return url, nil
}

func getParameterStoreValue(ctx context.Context, parameterName string, decrypt bool) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("get parameter: %w", err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}

	return *result.Parameter.Value, nil
}
