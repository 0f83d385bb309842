package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("KEYSMITH_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("KEYSMITH_ADMIN_KEY", "")
		out     = envOr("KEYSMITH_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "keysmithctl",
		Short: "CLI admin para keysmith (solo /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env KEYSMITH_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env KEYSMITH_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env KEYSMITH_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Estado del engine y señales publicadas (token enmascarado)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.OutFormat = out
			status, body, err := cl.do("GET", "/v1/admin/status", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status/100 != 2 {
				return fmt.Errorf("status=%d", status)
			}
			return nil
		},
	}

	var (
		applyFile       string
		applyExpiration int
		applyAudience   string
		applyKeyring    string
	)
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Aplicar configuración de tokens y reconciliar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.OutFormat = out

			payload := map[string]any{}
			if applyFile != "" {
				b, err := os.ReadFile(applyFile)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(b, &payload); err != nil {
					return fmt.Errorf("parse %s: %w", applyFile, err)
				}
			}
			if applyExpiration != 0 {
				payload["expiration_minutes"] = applyExpiration
			}
			if applyAudience != "" {
				payload["audience"] = applyAudience
			}
			if applyKeyring != "" {
				payload["keyring"] = applyKeyring
			}

			body, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			status, respBody, err := cl.do("PUT", "/v1/admin/config", body)
			if err != nil {
				return err
			}
			cl.print(status, respBody)
			if status/100 != 2 {
				return fmt.Errorf("apply falló: status=%d", status)
			}
			return nil
		},
	}
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "YAML con la configuración de tokens")
	applyCmd.Flags().IntVar(&applyExpiration, "expiration-minutes", 0, "vida del token en minutos (mínimo 10)")
	applyCmd.Flags().StringVar(&applyAudience, "audience", "", "audience opcional")
	applyCmd.Flags().StringVar(&applyKeyring, "keyring", "", "keyring destino (cambiarlo invalida todos los tokens previos)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Operaciones sobre la configuración de tokens",
	}
	configCmd.AddCommand(applyCmd)

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Forzar una rotación de clave+token ahora",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.OutFormat = out
			status, body, err := cl.do("POST", "/v1/admin/rotate", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status/100 != 2 {
				return fmt.Errorf("rotate falló: status=%d", status)
			}
			return nil
		},
	}

	root.AddCommand(statusCmd, configCmd, rotateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
