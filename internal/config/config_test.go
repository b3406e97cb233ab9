package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3000}, "localhost:3000"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetAddress()
			if got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// AzureADConfig.GetIssuer
// ---------------------------------------------------------------------------

func TestGetIssuer(t *testing.T) {
	tests := []struct {
		name string
		cfg  AzureADConfig
		want string
	}{
		{"explicit issuer wins", AzureADConfig{TenantID: "t1", Issuer: "https://sts.windows.net/t1/"}, "https://sts.windows.net/t1/"},
		{"derived from tenant", AzureADConfig{TenantID: "t1"}, "https://login.microsoftonline.com/t1/v2.0"},
		{"nothing configured", AzureADConfig{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetIssuer(); got != tt.want {
				t.Errorf("GetIssuer() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Graph: GraphConfig{
			BaseURL:      "https://graph.microsoft.com/v1.0",
			MaxBatchSize: 20,
			Timeout:      30 * time.Second,
		},
		Auth: AuthConfig{
			AzureAD: AzureADConfig{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid server port 0", func(c *Config) { c.Server.Port = 0 }},
		{"invalid server port 70000", func(c *Config) { c.Server.Port = 70000 }},
		{"missing graph base url", func(c *Config) { c.Graph.BaseURL = "" }},
		{"batch size zero", func(c *Config) { c.Graph.MaxBatchSize = 0 }},
		{"batch size above graph limit", func(c *Config) { c.Graph.MaxBatchSize = 21 }},
		{"negative timeout", func(c *Config) { c.Graph.Timeout = -time.Second }},
		{"missing tenant", func(c *Config) { c.Auth.AzureAD.TenantID = "" }},
		{"missing client id", func(c *Config) { c.Auth.AzureAD.ClientID = "" }},
		{"missing client secret", func(c *Config) { c.Auth.AzureAD.ClientSecret = "" }},
		{"negative peer limit", func(c *Config) { c.Roster.PeerLimit = -1 }},
		{"photo template without verb", func(c *Config) { c.Roster.PhotoURLTemplate = "https://photos.example/me.png" }},
		{"photo template with two verbs", func(c *Config) { c.Roster.PhotoURLTemplate = "/%s/%s" }},
		{"photo template with other verb", func(c *Config) { c.Roster.PhotoURLTemplate = "/photo?user=%s&size=%d" }},
		{"rate limit without rpm", func(c *Config) {
			c.Security.RateLimiting.Enabled = true
			c.Security.RateLimiting.RequestsPerMinute = 0
		}},
		{"redis without addr", func(c *Config) {
			c.Security.RateLimiting.Enabled = true
			c.Security.RateLimiting.RequestsPerMinute = 60
			c.Security.RateLimiting.Redis.Enabled = true
		}},
		{"tls without cert", func(c *Config) {
			c.Security.TLS.Enabled = true
			c.Security.TLS.KeyFile = "key.pem"
		}},
		{"tls without key", func(c *Config) {
			c.Security.TLS.Enabled = true
			c.Security.TLS.CertFile = "cert.pem"
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error, got nil")
			}
		})
	}

	t.Run("photo template with one verb passes", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Roster.PhotoURLTemplate = "https://photos.example/%s"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("redis with addr passes", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.RateLimiting = RateLimitingConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Redis:             RedisConfig{Enabled: true, Addr: "localhost:6379"},
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

const credentialsYAML = `
auth:
  azure_ad:
    tenant_id: "tenant-from-file"
    client_id: "client-from-file"
    client_secret: "secret-from-file"
`

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for explicit missing file")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, credentialsYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Graph.BaseURL != "https://graph.microsoft.com/v1.0" {
		t.Errorf("Graph.BaseURL = %q", cfg.Graph.BaseURL)
	}
	if cfg.Graph.MaxBatchSize != MaxGraphBatchSize {
		t.Errorf("Graph.MaxBatchSize = %d, want %d", cfg.Graph.MaxBatchSize, MaxGraphBatchSize)
	}
	if cfg.Graph.Timeout != 30*time.Second {
		t.Errorf("Graph.Timeout = %v, want 30s", cfg.Graph.Timeout)
	}
	if len(cfg.Graph.Scopes) != 1 || cfg.Graph.Scopes[0] != "https://graph.microsoft.com/.default" {
		t.Errorf("Graph.Scopes = %v", cfg.Graph.Scopes)
	}
	if cfg.Roster.PhotoURLTemplate != "/_layouts/15/userphoto.aspx?size=L&username=%s" {
		t.Errorf("Roster.PhotoURLTemplate = %q", cfg.Roster.PhotoURLTemplate)
	}
	if cfg.Roster.PeerLimit != 10 {
		t.Errorf("Roster.PeerLimit = %d, want 10", cfg.Roster.PeerLimit)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = credentialsYAML + `
server:
  host: "testhost"
  port: 9999
graph:
  max_batch_size: 5
  timeout: "5s"
roster:
  team_name: "Platform"
  include_peers: true
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Graph.MaxBatchSize != 5 {
		t.Errorf("Graph.MaxBatchSize = %d, want 5", cfg.Graph.MaxBatchSize)
	}
	if cfg.Graph.Timeout != 5*time.Second {
		t.Errorf("Graph.Timeout = %v, want 5s", cfg.Graph.Timeout)
	}
	if cfg.Roster.TeamName != "Platform" || !cfg.Roster.IncludePeers {
		t.Errorf("Roster = %+v", cfg.Roster)
	}
	if cfg.Auth.AzureAD.TenantID != "tenant-from-file" {
		t.Errorf("TenantID = %q", cfg.Auth.AzureAD.TenantID)
	}
}

func TestLoad_PrefixedEnvOverridesFile(t *testing.T) {
	t.Setenv("TR_AUTH_AZURE_AD_CLIENT_ID", "client-from-env")
	t.Setenv("TR_SERVER_PORT", "7070")

	cfg, err := Load(writeTempConfig(t, credentialsYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.AzureAD.ClientID != "client-from-env" {
		t.Errorf("ClientID = %q, want client-from-env", cfg.Auth.AzureAD.ClientID)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoad_BareCredentialNames(t *testing.T) {
	t.Setenv("TENANT_ID", "bare-tenant")
	t.Setenv("CLIENT_ID", "bare-client")
	t.Setenv("CLIENT_SECRET", "bare-secret")
	t.Setenv("ENTRA_ISSUER", "https://sts.windows.net/bare-tenant/")

	cfg, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ad := cfg.Auth.AzureAD
	if ad.TenantID != "bare-tenant" || ad.ClientID != "bare-client" || ad.ClientSecret != "bare-secret" {
		t.Errorf("AzureAD = %+v", ad)
	}
	if ad.GetIssuer() != "https://sts.windows.net/bare-tenant/" {
		t.Errorf("GetIssuer() = %q", ad.GetIssuer())
	}
}

func TestLoad_SecretExpansion(t *testing.T) {
	t.Setenv("ROSTER_TEST_SECRET", "expanded-secret")
	const content = `
auth:
  azure_ad:
    tenant_id: "t"
    client_id: "c"
    client_secret: "${ROSTER_TEST_SECRET}"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.AzureAD.ClientSecret != "expanded-secret" {
		t.Errorf("ClientSecret = %q, want expanded-secret", cfg.Auth.AzureAD.ClientSecret)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailureIsWrapped(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")
	_, err := Load(path)
	if err == nil {
		t.Skip("credentials present in the test environment")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want invalid configuration", err)
	}
}

func TestWatch_NoFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	if err := Watch("", func(*Config) { t.Error("onChange called without a config file") }); err != nil {
		t.Errorf("Watch() error: %v", err)
	}
}
