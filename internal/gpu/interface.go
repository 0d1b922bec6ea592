package gpu

// Reader samples GPU utilisation for host snapshots
type Reader interface {
	Sample() (Stats, error)
	Shutdown() error
}

// Stats is one GPU reading. Fields that could not be read are -1.
type Stats struct {
	Utilization  float64 // percent
	MemoryUsedMB float64
	Temperature  float64 // Celsius
	PowerWatts   float64
}

// Unavailable is the reading used when no GPU can be queried.
func Unavailable() Stats {
	return Stats{Utilization: -1, MemoryUsedMB: -1, Temperature: -1, PowerWatts: -1}
}
