package storage

import (
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the last health check result of one recorder
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager keeps recorder health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]HealthData),
	}
}

// UpdateHealth updates the health status for a recorder
func (hm *HealthManager) UpdateHealth(storageType string, health *HealthData) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[storageType] = *health
}

// GetHealth retrieves the health status for a specific recorder
func (hm *HealthManager) GetHealth(storageType string) (HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	health, exists := hm.health[storageType]
	return health, exists
}

// RecorderHealth pairs a recorder name with its status
type RecorderHealth struct {
	Recorder string `json:"recorder"`
	HealthData
}

// GetAllHealth returns every recorder's status ordered by name
func (hm *HealthManager) GetAllHealth() []RecorderHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make([]RecorderHealth, 0, len(hm.health))
	for k, v := range hm.health {
		result = append(result, RecorderHealth{Recorder: k, HealthData: v})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Recorder < result[j].Recorder })
	return result
}

// IsHealthy reports whether every recorder passed its last check
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	for _, h := range hm.health {
		if h.Status != StatusHealthy {
			return false
		}
	}
	return true
}
