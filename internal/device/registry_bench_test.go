package device

import (
	"testing"

	"github.com/nerrad567/meshsim/internal/topology"
)

func BenchmarkRegistryNeighbours(b *testing.B) {
	reg := finalizedRegistry(b, 100, topology.Ring)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Neighbours(i%100, true) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegistryNeighboursFullyConnected(b *testing.B) {
	reg := finalizedRegistry(b, 100, topology.FullyConnected)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Neighbours(i%100, false) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegistryReplace(b *testing.B) {
	reg := finalizedRegistry(b, 100, topology.FullyConnected)
	current, _ := reg.Device(50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next := NewStub(50, "")
		if err := reg.Replace(current, next); err != nil {
			b.Fatalf("Replace() error = %v", err)
		}
		current = next
	}
}

func BenchmarkRegistryGenerateID(b *testing.B) {
	reg := newStubRegistry(b, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.GenerateID()
	}
}

func BenchmarkRegistryConcurrentNeighbours(b *testing.B) {
	reg := finalizedRegistry(b, 100, topology.Ring)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			reg.Neighbours(i%100, false) //nolint:errcheck // benchmark
			i++
		}
	})
}
