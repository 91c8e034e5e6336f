package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var adminAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "", "admin API address (default http://localhost:<server.port>)")
}

// adminBase resolves the admin API address from the flag or the config.
func adminBase() (string, error) {
	if adminAddr != "" {
		return strings.TrimRight(adminAddr, "/"), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port), nil
}

// callAdmin sends body (when non-nil) as JSON and decodes the JSON answer
// into out.
func callAdmin(ctx context.Context, method, path string, body, out any) error {
	base, err := adminBase()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("admin api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("admin api: %s: %s", resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
