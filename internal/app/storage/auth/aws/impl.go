// Package aws generates AWS RDS IAM tokens used as database passwords.
package aws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5"

	"github.com/sotags/sotags-api/internal/config"
)

const (
	regionDetect = "detect"
	imdsTimeout  = 2 * time.Second
)

// region returns the configured region, asking IMDS when it is "detect"
func region(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	configured := cfg.DynamicAuth.AWSRDSIAM.Region
	switch configured {
	case "":
		return "", fmt.Errorf("AWS RDS IAM region is not configured")
	case regionDetect:
		client := imds.New(imds.Options{
			HTTPClient: &http.Client{Timeout: imdsTimeout},
		})
		out, err := client.GetRegion(ctx, &imds.GetRegionInput{})
		if err != nil {
			return "", fmt.Errorf("failed to get region from IMDS: %w", err)
		}
		return out.Region, nil
	default:
		return configured, nil
	}
}

func token(ctx context.Context, cfg *config.DatabaseConfig, awsRegion, user string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	tok, err := auth.BuildAuthToken(ctx, endpoint, awsRegion, user, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to build authentication token: %w", err)
	}
	return tok, nil
}

// NewToken returns a single RDS IAM token for user
func NewToken(ctx context.Context, cfg *config.DatabaseConfig, user string) (string, error) {
	awsRegion, err := region(ctx, cfg)
	if err != nil {
		return "", err
	}
	return token(ctx, cfg, awsRegion, user)
}

// PgxAuthFunc returns a BeforeConnect hook that sets a fresh token as the
// password of every new pool connection. The region is resolved once.
func PgxAuthFunc(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (func(context.Context, *pgx.ConnConfig) error, error) {
	awsRegion, err := region(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, connConfig *pgx.ConnConfig) error {
		tok, err := token(ctx, cfg, awsRegion, user)
		if err != nil {
			return err
		}
		connConfig.Password = tok
		return nil
	}, nil
}
