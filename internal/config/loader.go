package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ${NAME} or ${NAME:default}
var envRef = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

func expandEnvVars(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		name := s[m[2]:m[3]]
		if val, ok := os.LookupEnv(name); ok {
			b.WriteString(val)
		} else if m[4] >= 0 {
			b.WriteString(s[m[4]:m[5]])
		}
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// LoadFile reads a YAML file, expands env var references and decodes it into dest.
func LoadFile(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment so ${VAR} references in the YAML files can see them.
// A missing file is not an error and variables already set win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// reloadDebounce collapses the burst of events editors emit for one save.
const reloadDebounce = 250 * time.Millisecond

type snapshot struct {
	gateway   *Config
	pipeline  *PipelineConfig
	providers *ProvidersConfig
}

// Loader reads gateway.yaml, pipeline.yaml and providers.yaml from one
// directory and reloads them when they change on disk.
type Loader struct {
	dir    string
	logger *slog.Logger
	cur    atomic.Pointer[snapshot]

	mu        sync.Mutex
	callbacks []func()
	watcher   *fsnotify.Watcher
	pending   *time.Timer
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{dir: configDir, logger: logger}
}

// Load reads all three files. On error the previous configuration stays in effect.
func (l *Loader) Load() error {
	snap, err := l.read()
	if err != nil {
		return err
	}
	l.cur.Store(snap)
	l.logger.Info("configuration loaded", "dir", l.dir, "stages", len(snap.pipeline.Stages), "providers", len(snap.providers.Providers))
	return nil
}

func (l *Loader) read() (*snapshot, error) {
	snap := &snapshot{
		gateway:   DefaultConfig(),
		pipeline:  &PipelineConfig{},
		providers: &ProvidersConfig{},
	}
	files := []struct {
		name string
		dest any
	}{
		{"gateway.yaml", snap.gateway},
		{"pipeline.yaml", snap.pipeline},
		{"providers.yaml", snap.providers},
	}
	for _, f := range files {
		if err := LoadFile(filepath.Join(l.dir, f.name), f.dest); err != nil {
			return nil, fmt.Errorf("load %s: %w", f.name, err)
		}
	}
	if len(snap.pipeline.Stages) == 0 {
		return nil, fmt.Errorf("load pipeline.yaml: no stages defined")
	}
	snap.providers.applyKeyFallbacks()
	return snap, nil
}

func (l *Loader) Config() *Config {
	if s := l.cur.Load(); s != nil {
		return s.gateway
	}
	return nil
}

func (l *Loader) Pipeline() *PipelineConfig {
	if s := l.cur.Load(); s != nil {
		return s.pipeline
	}
	return nil
}

func (l *Loader) Providers() *ProvidersConfig {
	if s := l.cur.Load(); s != nil {
		return s.providers
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	l.callbacks = append(l.callbacks, fn)
	l.mu.Unlock()
}

// Reload loads the files again and, if that succeeds, runs the OnReload callbacks.
func (l *Loader) Reload() error {
	if err := l.Load(); err != nil {
		return err
	}
	l.mu.Lock()
	callbacks := append([]func(){}, l.callbacks...)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Watch reloads the configuration whenever a .yaml file in the directory
// is written or created.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.dir, err)
	}
	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watch(watcher)
	return nil
}

func (l *Loader) watch(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) == ".yaml" && ev.Has(fsnotify.Write|fsnotify.Create) {
				l.schedule(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("config watcher error", "error", err)
		}
	}
}

func (l *Loader) schedule(file string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		l.pending.Stop()
	}
	l.pending = time.AfterFunc(reloadDebounce, func() {
		l.logger.Info("config file changed, reloading", "file", file)
		if err := l.Reload(); err != nil {
			l.logger.Error("config reload failed, keeping previous", "error", err)
		}
	})
}

// Close stops the watcher, if one was started.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		l.pending.Stop()
	}
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
