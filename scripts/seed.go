package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/adapters/database"
	"github.com/zatekoja/campuslink/backend/internal/adapters/search"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/campuslink/backend/pkg/config"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

var (
	seedAdmin     = &entities.Principal{ID: "seed-admin", Role: entities.RoleAdmin}
	seedSubmitter = &entities.Principal{ID: "seed-user", Role: entities.RoleUser}
)

type campus struct {
	name, address, city, state string
	lat, lon                   float64
}

type storefront struct {
	name, category, address string
	lat, lon                float64
	tags                    []string
}

var campuses = []campus{
	{"Indian Institute of Science", "CV Raman Road", "Bengaluru", "Karnataka", 13.0219, 77.5671},
	{"Christ University", "Hosur Road", "Bengaluru", "Karnataka", 12.9343, 77.6061},
	{"University of Mysore", "Vishwavidyanilaya Karyasoudha", "Mysuru", "Karnataka", 12.3081, 76.6394},
}

var storefronts = []storefront{
	{"Campus Xerox Point", "xerox", "Gate 2, CV Raman Road", 13.0205, 77.5660, []string{"printing", "binding"}},
	{"Malleswaram Medicals", "pharmacy", "18th Cross, Malleswaram", 13.0068, 77.5709, []string{"24x7"}},
	{"Hosur Road Stationers", "stationary", "Hosur Road, opp. Christ", 12.9350, 77.6050, []string{"notebooks", "art supplies"}},
	{"Tea Stall Corner", "cafe", "Hosur Road", 12.9338, 77.6072, []string{"chai", "snacks"}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("campuslink-seed", cfg.Env)

	ctx := context.Background()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	var searchRepo repositories.UtilitySearchRepository
	if cfg.Typesense.Enabled {
		if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err == nil {
				searchRepo = adapter
			}
		}
	}

	universities := services.NewUniversityService(database.NewUniversityAdapter(pgClient))
	directory := services.NewDirectoryService(database.NewUtilityAdapter(pgClient, cfg.Store.ReviewMaxRetries), searchRepo)

	created := 0
	for _, c := range campuses {
		if err := seedCampus(ctx, universities, c); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				log.Info().Str("name", c.name).Msg("university already seeded")
				continue
			}
			log.Fatal().Err(err).Str("name", c.name).Msg("failed to seed university")
		}
		created++
	}

	verified := 0
	for _, s := range storefronts {
		if err := seedStorefront(ctx, directory, s); err != nil {
			log.Fatal().Err(err).Str("name", s.name).Msg("failed to seed utility")
		}
		verified++
	}

	log.Info().Int("universities", created).Int("utilities", verified).Msg("seeding complete")
}

func seedCampus(ctx context.Context, svc *services.UniversityService, c campus) error {
	bounds := entities.CampusBounds{
		NorthEast: entities.LatLng{Latitude: c.lat + 0.005, Longitude: c.lon + 0.005},
		SouthWest: entities.LatLng{Latitude: c.lat - 0.005, Longitude: c.lon - 0.005},
	}
	_, err := svc.Create(ctx, entities.UniversityInput{
		Name:         &c.name,
		Latitude:     &c.lat,
		Longitude:    &c.lon,
		CampusBounds: &bounds,
		Address:      &c.address,
		City:         &c.city,
		State:        &c.state,
	}, seedAdmin)
	return err
}

// seedStorefront submits as a regular user and verifies as admin, the same
// path community entries take.
func seedStorefront(ctx context.Context, svc *services.DirectoryService, s storefront) error {
	u, err := svc.Submit(ctx, entities.UtilityInput{
		Name:      &s.name,
		Category:  &s.category,
		Latitude:  &s.lat,
		Longitude: &s.lon,
		Address:   &s.address,
		Tags:      s.tags,
	}, seedSubmitter)
	if err != nil {
		return err
	}
	_, err = svc.Moderate(ctx, u.ID, entities.ModerationDecision{Verify: true}, seedAdmin)
	return err
}
