package services

import (
	"context"
	"errors"
	"fmt"

	"playjelly/config"
	"playjelly/db"
	"playjelly/models"
)

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportServices upserts services from a seed file by name. Status and
// uptime of existing services are left alone.
func ImportServices(ctx context.Context, repo *db.Repository, seed *config.SeedFile) (ImportResult, error) {
	var res ImportResult
	for _, s := range seed.Services {
		existing, err := repo.GetServiceByName(ctx, s.Name)
		switch {
		case errors.Is(err, db.ErrNotFound):
			svc := models.Service{Name: s.Name}
			applySeed(&svc, s)
			if _, err := repo.CreateService(ctx, svc); err != nil {
				return res, fmt.Errorf("create %s: %w", s.Name, err)
			}
			res.Created++
		case err != nil:
			return res, fmt.Errorf("lookup %s: %w", s.Name, err)
		default:
			applySeed(&existing, s)
			if _, err := repo.UpdateService(ctx, existing); err != nil {
				return res, fmt.Errorf("update %s: %w", s.Name, err)
			}
			res.Updated++
		}
	}
	return res, nil
}

func applySeed(svc *models.Service, s config.SeedService) {
	svc.Description = s.Description
	svc.Position = s.Position
	svc.URL, svc.IPAddress, svc.Port = nil, nil, nil
	if s.URL != "" {
		u := s.URL
		svc.URL = &u
	}
	if s.IPAddress != "" {
		ip := s.IPAddress
		svc.IPAddress = &ip
	}
	if s.Port > 0 {
		p := s.Port
		svc.Port = &p
	}
}
