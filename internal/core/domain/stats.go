package domain

type CPUFrequency struct {
	Current *float64 `json:"current"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

type NetIO struct {
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
}

// SystemMetrics is a point-in-time snapshot of the host.
type SystemMetrics struct {
	CPUUsage      float64      `json:"cpu_usage"`
	CPUCount      int          `json:"cpu_count"`
	CPUFrequency  CPUFrequency `json:"cpu_frequency"`
	LoadAverage   []float64    `json:"load_average"`
	TotalMemory   float64      `json:"total_memory"`
	UsedMemory    float64      `json:"used_memory"`
	MemoryPercent float64      `json:"memory_percent"`
	DiskTotal     float64      `json:"disk_total"`
	DiskUsed      float64      `json:"disk_used"`
	DiskFree      float64      `json:"disk_free"`
	DiskPercent   float64      `json:"disk_percent"`
	ProcessCount  int          `json:"process_count"`
	NetIO         NetIO        `json:"net_io"`
	Uptime        float64      `json:"uptime"`
}

// GlobalCounters is the persisted global counter document.
type GlobalCounters struct {
	TotalRequests int64
	TotalUsers    int64
}

type GlobalStats struct {
	TotalRequests int64 `json:"totalRequests"`
	TotalUsers    int64 `json:"totalUsers"`
	TotalImages   int64 `json:"totalImages"`
}

type StatsReport struct {
	SystemMetrics
	GlobalStats GlobalStats `json:"globalStats"`
	Timestamp   float64     `json:"timestamp"`
}
