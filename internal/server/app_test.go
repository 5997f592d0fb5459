package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSeeder struct {
	order []models.Collection
	fail  models.Collection
}

func (s *recordingSeeder) Seed(_ context.Context, c models.Collection, bodies []map[string]json.RawMessage) (int, error) {
	if c == s.fail {
		return 0, errors.New("boom")
	}
	s.order = append(s.order, c)
	return len(bodies), nil
}

func bodies(n int) []map[string]json.RawMessage {
	out := make([]map[string]json.RawMessage, n)
	for i := range out {
		out[i] = map[string]json.RawMessage{}
	}
	return out
}

func TestSeed_GuardiansFirst(t *testing.T) {
	s := &recordingSeeder{}

	counts, err := seed(context.Background(), s, SeedFile{
		FAQs:      bodies(3),
		Patients:  bodies(2),
		Guardians: bodies(1),
	})
	require.NoError(t, err)

	assert.Equal(t, []models.Collection{models.CollectionGuardians, models.CollectionPatients, models.CollectionFAQs}, s.order)
	assert.Equal(t, map[models.Collection]int{
		models.CollectionGuardians: 1,
		models.CollectionPatients:  2,
		models.CollectionFAQs:      3,
	}, counts)
}

func TestSeed_SkipsEmptyAndStopsOnError(t *testing.T) {
	s := &recordingSeeder{fail: models.CollectionPatients}

	counts, err := seed(context.Background(), s, SeedFile{Patients: bodies(1), FAQs: bodies(1)})
	require.Error(t, err)
	assert.Empty(t, s.order)
	assert.Empty(t, counts)
}

func TestAppSeed_BadJSON(t *testing.T) {
	app := &App{}
	_, err := app.Seed(context.Background(), strings.NewReader("{"))
	assert.ErrorContains(t, err, "decode seed file")
}
