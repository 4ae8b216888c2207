package aws

import (
	"context"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "AWS_ENDPOINT", "AWS_PROFILE"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", dir+"/config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", dir+"/credentials")
	t.Setenv("AWS_REGION", "ap-south-1")
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Nil(t, cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestLoadAWSConfigLocalStack(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", sdkaws.ToString(cfg.BaseEndpoint))

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, localStackKey, creds.AccessKeyID)
}
