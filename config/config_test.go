package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "release", c.GinMode)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, "socialforum", c.DBName)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, "info", c.LogLevel)
	assert.NotEmpty(t, c.S3Region)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := AppConfig{AppPort: "9000", LogLevel: "debug", AllowedOrigins: []string{"https://forum.example.com"}}
	applyDefaults(&c)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, []string{"https://forum.example.com"}, c.AllowedOrigins)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("S3_BASE_ENDPOINT", "http://minio:9000")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, "env-secret", c.JWTSecret)
	assert.Equal(t, "env-bucket", c.S3Bucket)
	assert.Equal(t, "http://minio:9000", c.S3BaseEndpoint)
	assert.Equal(t, "root", c.AdminUsername)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.AllowedOrigins)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
	assert.Empty(t, splitAndTrim("  ,  "))
}
