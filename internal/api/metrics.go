package api

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// HealthReport - ответ /health
type HealthReport struct {
	Status        string       `json:"status"`
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Rooms         int          `json:"rooms"`
	Time          int64        `json:"time"`
	CPUPercent    *float64     `json:"cpuPercent,omitempty"`
	RSSMB         *float64     `json:"rssMb,omitempty"`
	Runtime       RuntimeStats `json:"runtime"`
}

// RuntimeStats - состояние кучи и планировщика Go
type RuntimeStats struct {
	AllocMB     float64 `json:"allocMb"`
	SysMB       float64 `json:"sysMb"`
	HeapAllocMB float64 `json:"heapAllocMb"`
	NumGC       uint32  `json:"numGc"`
	Goroutines  int     `json:"goroutines"`
}

// processStats снимает показатели процесса через gopsutil
type processStats struct {
	started time.Time
	proc    *process.Process // nil, если ОС не отдаёт данные процесса
}

func newProcessStats() *processStats {
	ps := &processStats{started: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		ps.proc = proc
	}
	return ps
}

// report собирает HealthReport; недоступные показатели процесса опускаются
func (ps *processStats) report(rooms int) HealthReport {
	uptime := time.Since(ps.started)
	r := HealthReport{
		Status:        "ok",
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Rooms:         rooms,
		Time:          time.Now().Unix(),
		Runtime:       readRuntime(),
	}
	if ps.proc == nil {
		return r
	}
	if cpu, err := ps.proc.CPUPercent(); err == nil {
		r.CPUPercent = &cpu
	}
	if info, err := ps.proc.MemoryInfo(); err == nil {
		rss := toMB(info.RSS)
		r.RSSMB = &rss
	}
	return r
}

func readRuntime() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		AllocMB:     toMB(m.Alloc),
		SysMB:       toMB(m.Sys),
		HeapAllocMB: toMB(m.HeapAlloc),
		NumGC:       m.NumGC,
		Goroutines:  runtime.NumGoroutine(),
	}
}

func toMB(b uint64) float64 { return float64(b) / 1024 / 1024 }
