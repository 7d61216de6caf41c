package embedding_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/models"
)

func TestEmbed_Deterministic(t *testing.T) {
	c := qt.New(t)
	a := embedding.Embed("Use Rust for the backend service", embedding.ZeroStats{})
	b := embedding.Embed("Use Rust for the backend service", embedding.ZeroStats{})
	c.Assert(a, qt.DeepEquals, b)
	c.Assert(len(a), qt.Equals, models.EmbeddingDims)
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	c := qt.New(t)
	v := embedding.Embed("   ", embedding.ZeroStats{})
	for _, f := range v {
		c.Assert(f, qt.Equals, float32(0))
	}
}

func TestEmbed_IsUnitNorm(t *testing.T) {
	c := qt.New(t)
	v := embedding.Embed("Cosine similarity uses TF-IDF vectors for ranking", embedding.ZeroStats{})
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	c.Assert(sumSq > 0.99 && sumSq < 1.01, qt.IsTrue)
}

func TestCosine_IdenticalVectorsAreOne(t *testing.T) {
	c := qt.New(t)
	v := embedding.Embed("identical text for cosine check", embedding.ZeroStats{})
	c.Assert(embedding.Cosine(v, v) > 0.999, qt.IsTrue)
}

func TestCosine_UnrelatedTextScoresLower(t *testing.T) {
	c := qt.New(t)
	a := embedding.Embed("sqlite FTS5 lexical search ranking", embedding.ZeroStats{})
	b := embedding.Embed("sqlite FTS5 lexical search ranking", embedding.ZeroStats{})
	unrelated := embedding.Embed("prefer pizza over pasta for dinner", embedding.ZeroStats{})
	c.Assert(embedding.Cosine(a, unrelated) < embedding.Cosine(a, b), qt.IsTrue)
}

func TestCosine_MismatchedLengthIsZero(t *testing.T) {
	c := qt.New(t)
	c.Assert(embedding.Cosine([]float32{1, 2}, []float32{1}), qt.Equals, 0.0)
}

func TestRRF_SumsReciprocalRanks(t *testing.T) {
	c := qt.New(t)
	got := embedding.RRF(60, 1, 2)
	want := 1.0/61.0 + 1.0/62.0
	c.Assert(got, qt.CmpEquals(), want)
}

func TestRRF_AbsentRankContributesNothing(t *testing.T) {
	c := qt.New(t)
	got := embedding.RRF(60, 1, 0)
	want := 1.0 / 61.0
	c.Assert(got, qt.CmpEquals(), want)
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	c := qt.New(t)
	v := embedding.Embed("round trip test vector", embedding.ZeroStats{})
	blob := embedding.Marshal(v)
	c.Assert(len(blob), qt.Equals, models.EmbeddingDims*4)
	got := embedding.Unmarshal(blob)
	c.Assert(got, qt.DeepEquals, v)
}

func TestMarshal_EmptyVectorIsNilBlob(t *testing.T) {
	c := qt.New(t)
	c.Assert(embedding.Marshal(nil), qt.IsNil)
	c.Assert(embedding.Marshal([]float32{}), qt.IsNil)
}

func TestUnmarshal_MalformedLengthIsNil(t *testing.T) {
	c := qt.New(t)
	c.Assert(embedding.Unmarshal([]byte{1, 2, 3}), qt.IsNil)
}

type fakeStats struct {
	df    map[string]int
	total int
}

func (f fakeStats) DocFreq(tok string) int { return f.df[tok] }
func (f fakeStats) TotalDocs() int         { return f.total }

func TestEmbed_RareTokenWeighsMoreThanCommonToken(t *testing.T) {
	c := qt.New(t)
	stats := fakeStats{df: map[string]int{"common": 100, "rare": 1}, total: 100}
	vCommon := embedding.Embed("common common common", stats)
	vRare := embedding.Embed("rare rare rare", stats)

	var maxCommon, maxRare float32
	for _, f := range vCommon {
		if f > maxCommon {
			maxCommon = f
		}
	}
	for _, f := range vRare {
		if f > maxRare {
			maxRare = f
		}
	}
	c.Assert(maxRare > maxCommon, qt.IsTrue)
}
