package idhash

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flatcoin-lab/internal/domain"
)

func TestComputeRunID_Deterministic(t *testing.T) {
	a := ComputeRunID(domain.ScenarioSteadyState, 42, 1000, "fp")
	b := ComputeRunID(domain.ScenarioSteadyState, 42, 1000, "fp")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestComputeRunID_DistinguishesInputs(t *testing.T) {
	base := ComputeRunID(domain.ScenarioSteadyState, 42, 1000, "fp")

	assert.NotEqual(t, base, ComputeRunID(domain.ScenarioBankRun, 42, 1000, "fp"))
	assert.NotEqual(t, base, ComputeRunID(domain.ScenarioSteadyState, 43, 1000, "fp"))
	assert.NotEqual(t, base, ComputeRunID(domain.ScenarioSteadyState, 42, 999, "fp"))
	assert.NotEqual(t, base, ComputeRunID(domain.ScenarioSteadyState, 42, 1000, "fp2"))
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint([]byte("config-a"))
	b := Fingerprint([]byte("config-a"))
	c := Fingerprint([]byte("config-b"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
