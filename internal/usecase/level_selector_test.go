package usecase_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
	"github.com/vitos/level_leverage_guard/internal/usecase"
)

func TestLevelEvaluator_DetermineSide(t *testing.T) {
	evaluator := usecase.NewLevelEvaluator(usecase.DefaultMinDistance)

	tests := []struct {
		name       string
		levelPrice float64
		price      float64
		want       domain.LevelType
	}{
		{"Price Above Level -> Support", 100.0, 101.0, domain.LevelSupport},
		{"Price Below Level -> Resistance", 100.0, 99.0, domain.LevelResistance},
		{"Price Equal Level -> None", 100.0, 100.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.DetermineSide(tt.levelPrice, tt.price))
		})
	}
}

func TestLevelEvaluator_Filter(t *testing.T) {
	current := 100.0
	levels := []domain.PriceLevel{
		testutils.Level(domain.LevelSupport, 95, 0.5, current),
		testutils.Level(domain.LevelSupport, 99.8, 0.5, current), // too close
		testutils.Level(domain.LevelSupport, 104, 0.5, current),  // wrong side
		testutils.Level(domain.LevelResistance, 108, 0.5, current),
		testutils.Level(domain.LevelResistance, 97, 0.5, current),    // wrong side
		testutils.Level(domain.LevelResistance, 100.2, 0.5, current), // too close
	}

	kept := usecase.NewLevelEvaluator(0.005).Filter(levels, current)

	require.Len(t, kept, 2)
	assert.Equal(t, 95.0, kept[0].Price)
	assert.Equal(t, 108.0, kept[1].Price)
}

// Every level that survives filtering sits on its own side of price.
func TestLevelEvaluator_FilterProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	evaluator := usecase.NewLevelEvaluator(0.005)

	for iter := 0; iter < 200; iter++ {
		current := 10 + rng.Float64()*1000
		var levels []domain.PriceLevel
		for i := 0; i < 30; i++ {
			typ := domain.LevelSupport
			if rng.Intn(2) == 0 {
				typ = domain.LevelResistance
			}
			levels = append(levels, testutils.Level(typ, current*(0.8+rng.Float64()*0.4), rng.Float64(), current))
		}
		for _, l := range evaluator.Filter(levels, current) {
			if l.Type == domain.LevelSupport {
				require.Less(t, l.Price, current)
			} else {
				require.Greater(t, l.Price, current)
			}
			require.GreaterOrEqual(t, l.DistanceFraction(current), 0.005)
		}
	}
}

func TestLevelSelector_Importance(t *testing.T) {
	selector := usecase.NewLevelSelector(config.Default().Selection)
	current := 100.0
	l := testutils.Level(domain.LevelSupport, 98, 0.5, current)

	// proximity = 1 - 0.02/0.05 = 0.6
	assert.InDelta(t, 0.5*0.4+0.6*0.4+0.5*0.2, selector.Importance(l, current, nil), 1e-9)

	enhanced := &domain.LevelEnrichment{Enhanced: true, MLBounceProbability: 0.9}
	assert.InDelta(t, 0.5*0.4+0.6*0.4+0.9*0.2, selector.Importance(l, current, enhanced), 1e-9)

	far := testutils.Level(domain.LevelSupport, 80, 0.5, current)
	assert.InDelta(t, 0.5*0.4+0.5*0.2, selector.Importance(far, current, nil), 1e-9)
}

func TestLevelSelector_SelectRanksAndCaps(t *testing.T) {
	cfg := config.Default().Selection
	cfg.PerSide = 2
	selector := usecase.NewLevelSelector(cfg)
	current := 100.0

	levels := []domain.PriceLevel{
		testutils.Level(domain.LevelSupport, 90, 0.9, current),
		testutils.Level(domain.LevelSupport, 98, 0.2, current),
		testutils.Level(domain.LevelSupport, 97, 0.8, current),
		testutils.Level(domain.LevelResistance, 103, 0.4, current),
	}

	critical, err := selector.Select(levels, current, nil, domain.LevelSupport, domain.LevelResistance)
	require.NoError(t, err)

	require.Len(t, critical.Supports, 2)
	assert.Equal(t, 97.0, critical.Supports[0].Level.Price)
	assert.Equal(t, 90.0, critical.Supports[1].Level.Price)
	assert.GreaterOrEqual(t, critical.Supports[0].Enrichment.ImportanceScore, critical.Supports[1].Enrichment.ImportanceScore)
	require.Len(t, critical.Resistances, 1)
	assert.Equal(t, critical.Resistances[0].Level.ID, critical.Resistances[0].Enrichment.LevelID)
}

func TestLevelSelector_RequiredSideMissing(t *testing.T) {
	selector := usecase.NewLevelSelector(config.Default().Selection)
	current := 100.0
	levels := []domain.PriceLevel{testutils.Level(domain.LevelSupport, 95, 0.5, current)}

	_, err := selector.Select(levels, current, nil, domain.LevelSupport, domain.LevelResistance)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	critical, err := selector.Select(levels, current, nil)
	require.NoError(t, err)
	assert.Len(t, critical.Supports, 1)
	assert.Empty(t, critical.Resistances)
}

func TestLevelSelector_RejectsOutOfRangeEnrichment(t *testing.T) {
	selector := usecase.NewLevelSelector(config.Default().Selection)
	current := 100.0
	support := testutils.Level(domain.LevelSupport, 97, 0.5, current)
	levels := []domain.PriceLevel{support, testutils.Level(domain.LevelResistance, 103, 0.5, current)}
	enrichments := map[string]domain.LevelEnrichment{
		support.ID: {LevelID: support.ID, Enhanced: true, MLBounceProbability: 1.5},
	}

	_, err := selector.Select(levels, current, enrichments)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOutOfRange))
}
