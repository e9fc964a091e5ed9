package forms

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredValidator(t *testing.T) {
	v := Required()

	assert.Error(t, v.Validate(""))
	assert.Error(t, v.Validate("   "))
	assert.Error(t, v.Validate("\t\n"))
	assert.NoError(t, v.Validate("Theft"))
	assert.NoError(t, v.Validate("  Theft  "))
}

func TestLengthValidators(t *testing.T) {
	assert.NoError(t, MinLength(3).Validate(""))
	assert.Error(t, MinLength(3).Validate("ab"))
	assert.NoError(t, MinLength(3).Validate("abc"))

	assert.NoError(t, MaxLength(3).Validate("día"))
	assert.Error(t, MaxLength(3).Validate("días"))
}

func TestRangeValidator(t *testing.T) {
	lat := Latitude()

	assert.NoError(t, lat.Validate(""))
	assert.NoError(t, lat.Validate("40.416775"))
	assert.NoError(t, lat.Validate(" -90 "))
	assert.Error(t, lat.Validate("90.5"))
	assert.Error(t, lat.Validate("north"))

	assert.Error(t, Longitude().Validate("-180.1"))
}

func TestPatternAndOneOf(t *testing.T) {
	p := Pattern(`^[a-z0-9_]+$`, "Lowercase letters only")
	assert.NoError(t, p.Validate(""))
	assert.NoError(t, p.Validate("alice_1"))
	assert.Error(t, p.Validate("Alice"))
	assert.Equal(t, "Lowercase letters only", p.Message())

	o := OneOf("Pending", "Resolved")
	assert.NoError(t, o.Validate("Pending"))
	assert.Error(t, o.Validate("pending"))
}

func TestSchemaValidate(t *testing.T) {
	schema := Schema{
		Field("crime_type", Required()),
		Field("description", Required(), MaxLength(10)),
		Field("latitude", Latitude()),
	}

	errs := schema.Validate(url.Values{
		"crime_type":  {"Theft"},
		"description": {"   "},
		"latitude":    {"123"},
	})

	assert.Equal(t, []string{"description", "latitude"}, errs.Fields())
	assert.Equal(t, "This field is required", errs["description"])
	assert.True(t, errs.Has("latitude"))
	assert.False(t, errs.Has("crime_type"))
	assert.Contains(t, errs.Error(), "description: This field is required")

	assert.Nil(t, schema.Validate(url.Values{
		"crime_type":  {"Theft"},
		"description": {"Bag stolen"},
	}))
}

func TestSchemaTrimmed(t *testing.T) {
	schema := Schema{Field("location", Required())}
	in := url.Values{"location": {"  Main St "}, "other": {" x "}}

	out := schema.Trimmed(in)

	assert.Equal(t, "Main St", out.Get("location"))
	assert.Equal(t, " x ", out.Get("other"))
	assert.Equal(t, "  Main St ", in.Get("location"))
}
