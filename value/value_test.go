package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsFieldOrder(t *testing.T) {
	v := Record(
		F("mesh_path", String("/Game/Foliage/SM_Fern")),
		F("center_x", Float(10.5)),
		F("center_y", Int(-3)),
		F("count", Int(50)),
		F("tags", Array(String("a"), Bool(true), Null())),
	)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"mesh_path":"/Game/Foliage/SM_Fern","center_x":10.5,"center_y":-3,"count":50,"tags":["a",true,null]}`, string(data))
	require.Equal(t, `{"mesh_path":"/Game/Foliage/SM_Fern","center_x":10.5,"center_y":-3,"count":50,"tags":["a",true,null]}`, string(data))
}

func TestParsePreservesOrderAndKinds(t *testing.T) {
	v, err := Parse([]byte(`{"z": 1, "a": 2.5, "m": {"y": "s", "b": [1, 2]}, "n": null}`))
	require.NoError(t, err)
	require.Equal(t, KindRecord, v.Kind())

	fields := v.Fields()
	require.Len(t, fields, 4)
	require.Equal(t, []string{"z", "a", "m", "n"}, []string{fields[0].Key, fields[1].Key, fields[2].Key, fields[3].Key})

	z, ok := fields[0].Value.Int()
	require.True(t, ok)
	require.Equal(t, int64(1), z)
	require.Equal(t, KindFloat, fields[1].Value.Kind())

	inner, ok := v.Get("m")
	require.True(t, ok)
	b, ok := inner.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, b.Len())
	require.True(t, b.Index(1).Equal(Int(2)))
	require.True(t, b.Index(5).IsNull())
}

func TestIntegralFloatReadsBackAsInt(t *testing.T) {
	data, err := json.Marshal(Float(3))
	require.NoError(t, err)
	require.Equal(t, "3", string(data))

	back, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, KindInt, back.Kind())
	f, ok := back.Float()
	require.True(t, ok)
	require.Equal(t, 3.0, f)

	data, err = json.Marshal(Float(3.25))
	require.NoError(t, err)
	back, err = Parse(data)
	require.NoError(t, err)
	require.Equal(t, KindFloat, back.Kind())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":1} {"b":2}`, `[1,]`, `{"a":1,"a":2}`, `{"":1}`} {
		_, err := Parse([]byte(input))
		require.Error(t, err, "input %q", input)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Record(F("a", Int(1))).Validate())
	require.ErrorIs(t, Float(math.NaN()).Validate(), ErrNonFinite)
	require.ErrorIs(t, Array(Float(math.Inf(1))).Validate(), ErrNonFinite)
	require.ErrorIs(t, Record(F("", Int(1))).Validate(), ErrEmptyKey)
	require.ErrorIs(t, Record(F("k", Int(1)), F("k", Int(2))).Validate(), ErrDuplicateKey)

	_, err := json.Marshal(Record(F("x", Float(math.NaN()))))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"radius": 250.0,
		"count":  40,
		"seed":   json.Number("7"),
		"names":  []any{"a", "b"},
	})
	require.NoError(t, err)

	keys := make([]string, 0, v.Len())
	for _, f := range v.Fields() {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"count", "names", "radius", "seed"}, keys)

	seed, _ := v.Get("seed")
	require.True(t, seed.Equal(Int(7)))

	_, err = FromAny(struct{}{})
	require.Error(t, err)
	_, err = FromAny(uint64(math.MaxUint64))
	require.Error(t, err)
	_, err = FromAny(math.Inf(-1))
	require.ErrorIs(t, err, ErrNonFinite)
}

func TestAccessorsCopy(t *testing.T) {
	v := Record(F("a", Int(1)))
	fields := v.Fields()
	fields[0].Value = Int(99)

	a, _ := v.Get("a")
	require.True(t, a.Equal(Int(1)))
}

func TestJSONRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("marshal then parse yields an equal record", prop.ForAll(
		func(keys []string, ints []int64, strs []string, flag bool) bool {
			seen := map[string]bool{}
			var fields []Field
			for i, k := range keys {
				if k == "" || seen[k] {
					continue
				}
				seen[k] = true
				var fv Value
				switch {
				case i < len(ints) && i%2 == 0:
					fv = Int(ints[i])
				case i < len(strs):
					fv = String(strs[i])
				default:
					fv = Bool(flag)
				}
				fields = append(fields, F(k, fv))
			}
			original := Record(F("payload", Record(fields...)), F("list", Array(String("x"), Int(1))))

			data, err := json.Marshal(original)
			if err != nil {
				return false
			}
			parsed, err := Parse(data)
			if err != nil {
				return false
			}
			return parsed.Equal(original)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
