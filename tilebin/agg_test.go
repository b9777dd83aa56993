package tilebin

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesAt(lat, lng float64, band string, values ...float64) []PixelSample {
	out := make([]PixelSample, 0, len(values))
	for _, v := range values {
		out = append(out, PixelSample{Lat: lat, Lng: lng, Band: band, Value: v})
	}
	return out
}

func sortRecords(recs []HexCellRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CellID != recs[j].CellID {
			return recs[i].CellID < recs[j].CellID
		}
		return recs[i].Band < recs[j].Band
	})
}

func TestAggregateMean(t *testing.T) {
	// Four co-located pixels reduce to one record with their mean.
	samples := samplesAt(-21.78, 157.06, "B02", 2469, 2471, 2467, 2469)
	records, err := Aggregate(samples, 12)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B02", records[0].Band)
	assert.Equal(t, int16(2469), records[0].Value)
}

func TestAggregateRoundsHalfToEven(t *testing.T) {
	recs, err := Aggregate(samplesAt(0.5, 0.5, "B02", 2, 3), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int16(2), recs[0].Value, "mean 2.5 rounds to even 2")

	recs, err = Aggregate(samplesAt(0.5, 0.5, "B02", 3, 4), 10)
	require.NoError(t, err)
	assert.Equal(t, int16(4), recs[0].Value, "mean 3.5 rounds to even 4")
}

func TestAggregateGroupsByBand(t *testing.T) {
	samples := append(
		samplesAt(-21.78, 157.06, "B02", 100, 200),
		samplesAt(-21.78, 157.06, "B03", 50)...,
	)
	records, err := Aggregate(samples, 12)
	require.NoError(t, err)
	require.Len(t, records, 2)
	sortRecords(records)
	assert.Equal(t, int16(150), records[0].Value)
	assert.Equal(t, int16(50), records[1].Value)
	assert.Equal(t, records[0].CellID, records[1].CellID)
}

func TestAggregateOrderIndependent(t *testing.T) {
	var samples []PixelSample
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		samples = append(samples, PixelSample{
			Lat:   -21.0 - rng.Float64(),
			Lng:   157.0 + rng.Float64(),
			Band:  []string{"B02", "B03", "B04"}[i%3],
			Value: float64(rng.Intn(4000)),
		})
	}
	want, err := Aggregate(samples, 9)
	require.NoError(t, err)

	shuffled := make([]PixelSample, len(samples))
	copy(shuffled, samples)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	got, err := Aggregate(shuffled, 9)
	require.NoError(t, err)

	sortRecords(want)
	sortRecords(got)
	assert.Equal(t, want, got)
}

func TestAggregateOverflowFails(t *testing.T) {
	_, err := Aggregate(samplesAt(0.5, 0.5, "B02", 40000, 40000), 10)
	var overflow *NumericOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "B02", overflow.Band)
	assert.Equal(t, 40000.0, overflow.Mean)
}

func TestAggregateNegativeOverflowFails(t *testing.T) {
	_, err := Aggregate(samplesAt(0.5, 0.5, "B02", -40000), 10)
	var overflow *NumericOverflowError
	require.ErrorAs(t, err, &overflow)
}

func TestAggregateIdempotent(t *testing.T) {
	samples := samplesAt(-21.78, 157.06, "B08", 1200, 1210, 1190)
	a, err := Aggregate(samples, 12)
	require.NoError(t, err)
	b, err := Aggregate(samples, 12)
	require.NoError(t, err)
	sortRecords(a)
	sortRecords(b)
	assert.Equal(t, a, b)
}
