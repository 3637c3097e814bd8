/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	OauthStateCookieName = "flowsync_oauth_state"
	OauthUserCookieName  = "flowsync_oauth_user"
	OauthCookieMaxAge    = 300 // 5 minutes
	ConfigFileEnv        = "FLOWSYNC_CONFIG"
)

// Config holds the application configuration values.
type Config struct {
	Port                 string
	AppBaseURL           string
	SecretKey            string
	StorageType          string
	GCPProjectID         string
	DatabaseURL          string
	SupabaseURL          string
	SupabaseAnonKey      string
	GoogleClientID       string
	GoogleClientSecret   string
	CalendarAPIEndpoint  string
	RefreshEnabled       bool
	PushGatewayURL       string
	PodcastFeedURL       string
	Timezone             string
	Location             *time.Location
	CORSAllowedOrigins   string
	OtelExporterEndpoint string
	GoogleOAuthConfig    *oauth2.Config
	Version              string
}

// LoadConfig loads configuration from environment variables, optionally
// overlaid by the YAML file named in FLOWSYNC_CONFIG.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:                 v.GetString("PORT"),
		AppBaseURL:           strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		SecretKey:            v.GetString("SECRET_KEY"),
		StorageType:          v.GetString("STORAGE_TYPE"),
		GCPProjectID:         v.GetString("GCP_PROJECT_ID"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		SupabaseURL:          strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseAnonKey:      v.GetString("SUPABASE_ANON_KEY"),
		GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
		CalendarAPIEndpoint:  v.GetString("CALENDAR_API_ENDPOINT"),
		RefreshEnabled:       v.GetBool("REFRESH_ENABLED"),
		PushGatewayURL:       strings.TrimRight(v.GetString("PUSH_GATEWAY_URL"), "/"),
		PodcastFeedURL:       v.GetString("PODCAST_FEED_URL"),
		Timezone:             v.GetString("TIMEZONE"),
		CORSAllowedOrigins:   v.GetString("CORS_ALLOWED_ORIGINS"),
		OtelExporterEndpoint: v.GetString("OTEL_EXPORTER_ENDPOINT"),
		Version:              v.GetString("VERSION"),
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET is not set")
	}
	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is not set")
	}

	switch cfg.StorageType {
	case "inmemory":
	case "firestore":
		if cfg.GCPProjectID == "" {
			return nil, fmt.Errorf("STORAGE_TYPE is 'firestore' but GCP_PROJECT_ID is not set")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("STORAGE_TYPE is 'postgres' but DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE: %s", cfg.StorageType)
	}

	if cfg.SecretKey != "" && len(cfg.SecretKey) != 64 {
		return nil, fmt.Errorf("SECRET_KEY must be 32 bytes hex encoded")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.GoogleOAuthConfig = &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.AppBaseURL + "/api/v1/calendar/callback",
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("STORAGE_TYPE", "inmemory")
	v.SetDefault("REFRESH_ENABLED", true)
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("VERSION", "dev")
}
