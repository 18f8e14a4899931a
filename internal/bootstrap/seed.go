package bootstrap

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"Physiotherapy",
}

// Directory is the write side of patient and provider storage. Both
// repositories implement it.
type Directory interface {
	UpsertPatient(ctx context.Context, p appointment.Patient) error
	UpsertProvider(ctx context.Context, p appointment.Provider) error
}

// Seeded lists the ids created by SeedDirectory.
type Seeded struct {
	Patients  []uuid.UUID
	Providers []uuid.UUID
}

// SeedDirectory fills dir with fake providers and patients.
func SeedDirectory(ctx context.Context, dir Directory, providers, patients int, log zerolog.Logger) (Seeded, error) {
	var out Seeded

	log.Info().Int("count", providers).Msg("seeding providers")
	for i := 0; i < providers; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		p := appointment.Provider{ID: uuid.New(), Name: "Dr. " + gofakeit.Name(), Specialty: &spec}
		if err := dir.UpsertProvider(ctx, p); err != nil {
			return out, fmt.Errorf("seed provider %d: %w", i, err)
		}
		out.Providers = append(out.Providers, p.ID)
	}

	log.Info().Int("count", patients).Msg("seeding patients")
	for i := 0; i < patients; i++ {
		email := gofakeit.Email()
		p := appointment.Patient{ID: uuid.New(), Name: gofakeit.Name(), Email: &email}
		if err := dir.UpsertPatient(ctx, p); err != nil {
			return out, fmt.Errorf("seed patient %d: %w", i, err)
		}
		out.Patients = append(out.Patients, p.ID)

		if (i+1)%1000 == 0 {
			log.Info().Int("done", i+1).Int("total", patients).Msg("patients seeded")
		}
	}

	return out, nil
}
