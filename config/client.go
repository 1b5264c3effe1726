package config

import "github.com/kilianp07/smartrail/auth"

// ClientConfig is used by commands that call a running service.
type ClientConfig struct {
	URL            string    `json:"url"`
	APIKey         string    `json:"api_key"`
	OAuth          auth.Conf `json:"oauth"`
	TimeoutSeconds int       `json:"timeout_seconds"`
}
