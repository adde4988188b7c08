package syncer

import "context"

// RemoteClient is the external API client the sync manager dispatches
// operations to. Its wire format is outside this core; implementations live
// with the application.
type RemoteClient interface {
	CreateAsset(ctx context.Context, payload map[string]any) error
	UpdateAsset(ctx context.Context, id string, payload map[string]any) error
	RecordScan(ctx context.Context, id string, payload map[string]any) error
	TransferAsset(ctx context.Context, id string, payload map[string]any) error
}

// NetworkStatus is the external connectivity provider.
type NetworkStatus interface {
	// Reachable answers the synchronous "is the remote reachable now" query
	// that gates every sync pass.
	Reachable(ctx context.Context) bool

	// Subscribe registers ch for reachability transitions (true when the
	// device comes online). The returned function unsubscribes.
	Subscribe(ch chan<- bool) (unsubscribe func())
}
