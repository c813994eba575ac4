package featureflag

type Flag string

const (
	FlagDisableRealtime           Flag = "DISABLE_REALTIME"
	FlagDisableTreeIntrospection  Flag = "DISABLE_TREE_INTROSPECTION"
	FlagDisableNeighbourBroadcast Flag = "DISABLE_NEIGHBOUR_BROADCAST"
)
