package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthiness(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"empty", Empty, false},
		{"nil", Nil, false},
		{"false", False, false},
		{"true", True, true},
		{"fixnum zero", Fixnum(0), true},
		{"fixnum nonzero", Fixnum(42), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestTagOrder(t *testing.T) {
	// The tag order is load-bearing for truthiness and the fallback
	// comparator.
	assert.Less(t, int(TagEmpty), int(TagNil))
	assert.Less(t, int(TagNil), int(TagFalse))
	assert.Less(t, int(TagFalse), int(TagTrue))
	assert.Less(t, int(TagTrue), int(TagFixnum))
	assert.Less(t, int(TagFixnum), int(TagFloat))
	assert.Less(t, int(TagFloat), int(TagSymbol))
	assert.Less(t, int(TagSymbol), int(TagClass))
	assert.Less(t, int(TagRange), int(TagHash)) // Hash is the max tag
}

func TestFixnumRoundTrip(t *testing.T) {
	v := Fixnum(-17)
	assert.Equal(t, TagFixnum, v.Tag)
	assert.Equal(t, int64(-17), v.FixnumValue())
}

func TestFloatRoundTrip(t *testing.T) {
	v := Float(3.25)
	assert.Equal(t, TagFloat, v.Tag)
	assert.Equal(t, 3.25, v.FloatValue())
}

func TestIsHeapPerTag(t *testing.T) {
	heapTags := []Tag{TagClass, TagObject, TagProc, TagArray, TagString, TagRange, TagHash}
	for _, tag := range heapTags {
		assert.True(t, tag.IsHeap(), "%v should be a heap tag", tag)
	}
	immediateTags := []Tag{TagEmpty, TagNil, TagFalse, TagTrue, TagFixnum, TagFloat, TagSymbol}
	for _, tag := range immediateTags {
		assert.False(t, tag.IsHeap(), "%v should not be a heap tag", tag)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, Fixnum(1).IsNumeric())
	assert.True(t, Float(1).IsNumeric())
	assert.False(t, Nil.IsNumeric())
	assert.False(t, True.IsNumeric())
}

func TestAsFloat64Promotion(t *testing.T) {
	assert.Equal(t, 3.0, Fixnum(3).AsFloat64())
	assert.Equal(t, 2.5, Float(2.5).AsFloat64())
}
