package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"DISABLE_REALTIME"})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableRealtime))
		require.False(t, f.IsSet(FlagDisableTreeIntrospection))
	})

	t.Run("run if enabled", func(t *testing.T) {
		var ran bool
		f.IfSet(FlagDisableRealtime, func() {
			ran = true
		})
		require.True(t, ran)

		ran = false
		f.IfSet(FlagDisableNeighbourBroadcast, func() {
			ran = true
		})
		require.False(t, ran)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var ran bool
		f.IfNotSet(FlagDisableRealtime, func() {
			ran = true
		})
		require.False(t, ran)

		f.IfNotSet(FlagDisableNeighbourBroadcast, func() {
			ran = true
		})
		require.True(t, ran)
	})
}
