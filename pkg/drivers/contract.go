package drivers

import (
	"testing"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDriverContract runs a suite of tests to verify that a Driver implementation
// adheres to the defined interface contract.
func RunDriverContract(t *testing.T, driver ports.Driver) {
	t.Run("Name", func(t *testing.T) {
		assert.NotEmpty(t, driver.Name(), "drivers must be named for the audit trail")
	})

	t.Run("Open", func(t *testing.T) {
		require.NoError(t, driver.Open())
	})

	t.Run("Send Code", func(t *testing.T) {
		assert.NoError(t, driver.Send(domain.CodeEvent("contract_code", 42), true))
		assert.NoError(t, driver.Send(domain.CodeEvent("contract_code_nowait", 7), false))
	})

	t.Run("Send Payload", func(t *testing.T) {
		err := driver.Send(domain.TriggerEvent{Name: "contract_payload", Payload: []byte{0x01, 0x02}}, true)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, driver.Close())
	})
}
