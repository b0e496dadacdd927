package validation

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Birthday string `json:"birthday" binding:"omitempty,datetime=2006-01-02"`
}

func engine(t *testing.T) *validator.Validate {
	t.Helper()
	Init()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	return v
}

func TestToDetailsUsesJSONFieldNames(t *testing.T) {
	v := engine(t)

	err := v.Struct(sampleForm{Email: "nope", Password: "short", Birthday: "12/04/1999"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be at least 8 characters long", details["password"])
	assert.Equal(t, "must match datetime format: 2006-01-02", details["birthday"])
}

func TestToDetailsValidStruct(t *testing.T) {
	v := engine(t)

	err := v.Struct(sampleForm{Name: "Alice", Email: "alice@example.com", Password: "supersecret", Birthday: "1999-04-12"})
	assert.NoError(t, err)
	assert.Nil(t, ToDetails(err))
}

func TestToDetailsMalformedJSON(t *testing.T) {
	var dst sampleForm
	err := json.Unmarshal([]byte(`{"name":`), &dst)
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "invalid json", details["payload"])
}
