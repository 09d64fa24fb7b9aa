package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document accepted by services:import.
type SeedFile struct {
	Services []SeedService `yaml:"services"`
}

type SeedService struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url,omitempty"`
	IPAddress   string `yaml:"ip_address,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Position    int    `yaml:"position,omitempty"`
}

// LoadSeedFile reads and validates a services seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}
	seen := make(map[string]bool, len(seed.Services))
	for i, s := range seed.Services {
		if s.Name == "" {
			return nil, fmt.Errorf("service #%d: name is required", i+1)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("service %q listed twice", s.Name)
		}
		seen[s.Name] = true
		if s.URL != "" {
			u, err := url.Parse(s.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("service %q: invalid url %q", s.Name, s.URL)
			}
		}
		if s.Port < 0 || s.Port > 65535 {
			return nil, fmt.Errorf("service %q: invalid port %d", s.Name, s.Port)
		}
	}
	return &seed, nil
}
