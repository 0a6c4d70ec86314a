package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion represents a versioned model bundle
type ModelVersion struct {
	Version   string             `json:"version"`
	Seq       int                `json:"seq"`
	Path      string             `json:"path"`
	ModelName string             `json:"model_name"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   PerformanceMetrics `json:"metrics"`
	IsActive  bool               `json:"is_active"`
}

// ModelManager handles bundle versioning and rollback
type ModelManager struct {
	mu           sync.Mutex
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	current      *ModelVersion
}

// NewModelManager creates a manager backed by model_versions.json in modelsDir
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// Dir returns the directory versions are stored in.
func (mm *ModelManager) Dir() string { return mm.modelsDir }

// AddVersion registers a bundle path. The new version is not active yet.
func (mm *ModelManager) AddVersion(bundlePath, modelName string, metrics PerformanceMetrics) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	seq := 1
	for _, v := range mm.versions {
		if v.Seq >= seq {
			seq = v.Seq + 1
		}
	}
	now := time.Now().UTC()
	version := ModelVersion{
		Version:   fmt.Sprintf("%s-%03d", now.Format("20060102-150405"), seq),
		Seq:       seq,
		Path:      bundlePath,
		ModelName: modelName,
		CreatedAt: now,
		Metrics:   metrics,
	}

	mm.versions = append(mm.versions, version)
	mm.sortLocked()

	return version, mm.saveLocked()
}

// ActivateVersion activates a specific version
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activateLocked(version)
}

func (mm *ModelManager) activateLocked(version string) error {
	found := -1
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			found = i
		}
	}
	if found < 0 {
		return fmt.Errorf("version %s not found", version)
	}
	for i := range mm.versions {
		mm.versions[i].IsActive = i == found
	}
	mm.current = &mm.versions[found]
	return mm.saveLocked()
}

// Rollback activates the version registered before the active one
func (mm *ModelManager) Rollback() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	// versions are sorted newest first
	if currentIdx+1 < len(mm.versions) {
		return mm.activateLocked(mm.versions[currentIdx+1].Version)
	}
	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns the active version, or nil
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.current == nil {
		return nil
	}
	v := *mm.current
	return &v
}

// ListVersions returns all versions, newest first
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

func (mm *ModelManager) sortLocked() {
	var active string
	if mm.current != nil {
		active = mm.current.Version
	}
	sort.Slice(mm.versions, func(i, j int) bool {
		return mm.versions[i].Seq > mm.versions[j].Seq
	})
	mm.current = nil
	for i := range mm.versions {
		if mm.versions[i].Version == active {
			mm.current = &mm.versions[i]
		}
	}
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	sort.Slice(mm.versions, func(i, j int) bool {
		return mm.versions[i].Seq > mm.versions[j].Seq
	})
	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.current = &mm.versions[i]
			break
		}
	}
	return nil
}

func (mm *ModelManager) saveLocked() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mm.versionsFile, data, 0o600)
}
