package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=3000"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
