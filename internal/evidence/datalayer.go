package evidence

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsight/opsight/internal/config"
	"github.com/opsight/opsight/internal/logging"
)

// DataLayer implements Provider against the real evidence sources: daily
// log files under a configured root, a PostgreSQL metrics database, and a
// per-source upstream reporting endpoint.
type DataLayer struct {
	logDir       string
	pool         *pgxpool.Pool
	upstream     *http.Client
	logger       *logging.Logger
	mu           sync.RWMutex
	systems      *config.SystemsFile
	upstreamURLs map[string]string
}

// DataLayerOptions configures a DataLayer.
type DataLayerOptions struct {
	// LogDir is the root directory holding per-system log subdirectories
	LogDir string

	// Pool is the metrics database connection pool. May be nil, in which
	// case database-backed evidence reports unavailable.
	Pool *pgxpool.Pool

	// UpstreamURLs maps source system names to their reporting base URLs
	UpstreamURLs map[string]string

	// HTTPTimeout bounds upstream HTTP calls. Default 15s.
	HTTPTimeout time.Duration

	// Systems is the initial monitored-systems registry
	Systems *config.SystemsFile
}

// NewDataLayer creates a DataLayer.
func NewDataLayer(opts DataLayerOptions) *DataLayer {
	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &DataLayer{
		logDir:       opts.LogDir,
		pool:         opts.Pool,
		upstream:     &http.Client{Timeout: timeout},
		logger:       logging.GetLogger("evidence"),
		systems:      opts.Systems,
		upstreamURLs: opts.UpstreamURLs,
	}
}

// UpdateSystems swaps in a new monitored-systems registry. Wired to the
// config watcher so registry edits take effect without a restart.
func (d *DataLayer) UpdateSystems(systems *config.SystemsFile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.systems = systems
	d.logger.InfoWithFields("systems registry updated",
		logging.Field("systems", len(systems.Systems)),
	)
	return nil
}

// system resolves a system name against the registry. Unknown or disabled
// systems are rejected.
func (d *DataLayer) system(name string) (*config.SystemConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.systems == nil {
		return nil, &ValidationError{Field: "system", Reason: "no systems configured"}
	}

	sys := d.systems.System(name)
	if sys == nil {
		return nil, &ValidationError{Field: "system", Reason: fmt.Sprintf("unknown system %q", name)}
	}
	if !sys.Enabled {
		return nil, &ValidationError{Field: "system", Reason: fmt.Sprintf("system %q is disabled", name)}
	}
	return sys, nil
}

// tableOwner finds the system that registers the given table. Tables not
// present in any system's registry are rejected, which keeps table names
// out of dynamically built SQL.
func (d *DataLayer) tableOwner(table string) (*config.SystemConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.systems == nil {
		return nil, &ValidationError{Field: "table", Reason: "no systems configured"}
	}

	for i := range d.systems.Systems {
		sys := &d.systems.Systems[i]
		if sys.HasTable(table) {
			return sys, nil
		}
	}
	return nil, &ValidationError{Field: "table", Reason: fmt.Sprintf("table %q is not registered for any system", table)}
}

// upstreamBaseURL resolves the reporting endpoint for a source system.
func (d *DataLayer) upstreamBaseURL(sourceSystem string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	url, ok := d.upstreamURLs[sourceSystem]
	if !ok {
		return "", &ValidationError{Field: "source_system", Reason: fmt.Sprintf("no upstream endpoint configured for %q", sourceSystem)}
	}
	return url, nil
}
