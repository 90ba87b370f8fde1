// Package mesh runs a device registry as a live network.
//
// The registry in package device owns membership and the neighbour relation;
// Network puts traffic through it:
//
//	physical device ──in──► Listener ──► Network.Deliver ──► neighbours' Tell
//	                                          │
//	                                          ├─ Status / ID: update status, record history
//	                                          ├─ Execute: run one step on the sender
//	                                          └─ LeaveLightweight: tell the sender
//
//	Network.ExecuteRound ──► every device's Execute (bounded by errgroup)
//
// Network also exposes both mode transitions (GoLightweight and
// LeaveLightweight) and emits Events to observers: the WebSocket hub, the
// audit log and InfluxDB telemetry are all wired as observers.
//
// Messages are always delivered without holding the registry lock.
package mesh
