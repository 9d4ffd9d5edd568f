package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverride(t *testing.T) {
	t.Setenv("SK_TEST_SET", "from-env")
	t.Setenv("SK_TEST_EMPTY", "")

	v := "default"
	assert.True(t, EnvOverride(&v, "SK_TEST_SET"))
	assert.Equal(t, "from-env", v)

	v = "default"
	assert.False(t, EnvOverride(&v, "SK_TEST_EMPTY"))
	assert.Equal(t, "default", v)

	assert.False(t, EnvOverride(&v, "SK_TEST_UNSET_VARIABLE"))
	assert.Equal(t, "default", v)
}
