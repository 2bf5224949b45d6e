package domain

// Health is the liveness snapshot served by the stateless gateway.
type Health struct {
	Status      string
	UsersCount  int
	Connections int
}

// ProcessMetric is the latest self-sample of the server process, collected
// by the health telemetry worker.
type ProcessMetric struct {
	CPUPercent    float64
	MemoryPercent float32
	SampledAt     int64
}
