// Package device provides the simulated devices and the Registry that owns
// their membership and neighbour relation.
//
// A device is a node with a stable integer ID, an opaque address for its
// physical counterpart, a free-form status and one of three execution modes.
// The Registry assigns IDs, builds the neighbour relation once at Finalize
// and afterwards allows exactly one mutation: Replace, which swaps a device
// for another in place while keeping its edges and status.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                              Registry                                 │
//	│                                                                       │
//	│   order []int ─────────┐        devices map[int]Device                │
//	│   (registration order) │        (id → current device)                 │
//	│                        ▼                                              │
//	│              topology.Build(order, kind)                              │
//	│                        │                                              │
//	│                        ▼                                              │
//	│             adj map[int]set[int]  (id → neighbour ids)                │
//	│                                                                       │
//	│   Replace(old, new): rebinds devices[id], rekeys adj in O(degree)     │
//	└──────────────────────────────────────────────────────────────────────┘
//	          ▲                                   │
//	          │ Replace                           │ Neighbours
//	┌─────────┴──────────┐              ┌─────────▼──────────┐
//	│    Lightweight     │◀─ GoLightweight ─┤      Remote        │
//	│ executes locally   │─ LeaveLightweight ─▶ proxies endpoint │
//	└────────────────────┘              └────────────────────┘
//
// # Reaction table
//
// Tell applies the receiving variant's reaction:
//
//	Message           Remote     Lightweight        Stub
//	Execute           forward    ignore             ignore
//	Result / Show     forward    forward            ignore
//	LeaveLightweight  ignore     replace to Remote  ignore
//	other             forward    ignore             ignore
//
// ShowResult is the uniform output path: Remote sends Result, Lightweight
// sends Show, Stub keeps the value in memory.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//
//	for range 5 {
//	    if _, err := reg.RegisterAndCreate(func(id int) device.Device {
//	        return device.NewRemote(id, fmt.Sprintf("node-%d", id), ep)
//	    }); err != nil {
//	        return err
//	    }
//	}
//	if err := reg.Finalize(topology.Ring); err != nil {
//	    return err
//	}
//
//	neighbours, err := reg.Neighbours(0, false) // devices 1 and 4
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Setup operations, Replace and
// Reset take the write lock; queries take the read lock. Device status has
// its own lock, so reading a device's status never blocks the registry.
// Tell on a Lightweight device may call Replace and must not be invoked
// while the caller holds the registry lock.
package device
