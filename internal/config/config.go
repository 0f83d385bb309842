package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinExpirationMinutes es el mínimo aceptado para tokens emitidos.
const MinExpirationMinutes = 10

// TokenConfig es el subconjunto de configuración que afecta el contenido
// de los tokens emitidos. Es inmutable durante un pase de reconciliación.
type TokenConfig struct {
	// ExpirationMinutes define la vida del token. Mínimo 10.
	ExpirationMinutes int `yaml:"expiration_minutes" json:"expiration_minutes"`

	// Audience opcional; si está vacío se usa el host del app_url.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// AdditionalClaims se inyectan al payload antes de los claims estándar.
	// Un claim estándar con el mismo nombre siempre gana.
	AdditionalClaims map[string]any `yaml:"additional_claims,omitempty" json:"additional_claims,omitempty"`

	// Keyring agrupa las signing keys publicadas. Cambiarlo invalida de
	// inmediato todos los tokens emitidos bajo el keyring anterior.
	Keyring string `yaml:"keyring" json:"keyring"`
}

// Validate chequea los invariantes de la configuración de tokens.
func (t TokenConfig) Validate() error {
	if t.ExpirationMinutes < MinExpirationMinutes {
		return fmt.Errorf("expiration_minutes must be at least %d, got %d", MinExpirationMinutes, t.ExpirationMinutes)
	}
	return nil
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// AppURL es la URL pública del servicio; su origin se usa como "iss".
		AppURL      string `yaml:"app_url"`
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"server"`

	Store struct {
		// memory | fs | redis | postgres
		Kind string `yaml:"kind"`
		FS   struct {
			Root string `yaml:"root"`
		} `yaml:"fs"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	Token TokenConfig `yaml:"token"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee la configuración desde un YAML y aplica overrides de entorno.
// Si path está vacío o el archivo no existe, arranca solo con defaults+env.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&c)

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.AppURL == "" {
		c.Server.AppURL = "http://localhost:8080"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "memory"
	}
	if c.Store.FS.Root == "" {
		c.Store.FS.Root = "./data/keysmith"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "keysmith:"
	}
	if c.Token.ExpirationMinutes == 0 {
		c.Token.ExpirationMinutes = 60
	}
	if c.Token.Keyring == "" {
		c.Token.Keyring = "default"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return &c, nil
}

// applyEnv superpone variables de entorno sobre lo leído del YAML.
// env > yaml > default.
func applyEnv(c *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("KEYSMITH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("KEYSMITH_APP_URL"); v != "" {
		c.Server.AppURL = v
	}
	if v := os.Getenv("KEYSMITH_ADMIN_KEY"); v != "" {
		c.Server.AdminAPIKey = v
	}
	if v := os.Getenv("KEYSMITH_STORE_KIND"); v != "" {
		c.Store.Kind = v
	}
	if v := os.Getenv("KEYSMITH_FS_ROOT"); v != "" {
		c.Store.FS.Root = v
	}
	if v := os.Getenv("KEYSMITH_REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("KEYSMITH_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = n
		}
	}
	if v := os.Getenv("KEYSMITH_PG_DSN"); v != "" {
		c.Store.Postgres.DSN = v
	}
	if v := os.Getenv("KEYSMITH_EXPIRATION_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Token.ExpirationMinutes = n
		}
	}
	if v := os.Getenv("KEYSMITH_AUDIENCE"); v != "" {
		c.Token.Audience = v
	}
	if v := os.Getenv("KEYSMITH_KEYRING"); v != "" {
		c.Token.Keyring = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}
