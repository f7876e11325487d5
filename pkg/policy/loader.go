package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay collapses the burst of events an editor produces on save.
const reloadDelay = 500 * time.Millisecond

// Loader reads policy files. A .rego file is one policy named after the
// file; its leading comment block describes it and may carry directives:
//
//	# Keeps analysis steps short
//	# severity: warning
//	# commands: analyze, setTime
//	# tags: analysis
//
// A .json file holds one Policy document.
type Loader struct {
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedPolicy

	watcher *fsnotify.Watcher
}

// cachedPolicy is a parsed file and the file state it was parsed from.
type cachedPolicy struct {
	policy  Policy
	modTime time.Time
	size    int64
}

// NewLoader creates a policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]cachedPolicy),
	}
}

// isPolicyFile reports whether path has a policy file extension.
func isPolicyFile(path string) bool {
	switch filepath.Ext(path) {
	case ".rego", ".json":
		return true
	}
	return false
}

// files expands paths into the policy files they name, in a stable order.
// A file given explicitly must be a policy file; directories are searched
// recursively and other files in them are ignored.
func files(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.IsDir() {
			if !isPolicyFile(path) {
				return nil, fmt.Errorf("%s is not a .rego or .json policy", path)
			}
			out = append(out, path)
			continue
		}
		var found []string
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isPolicyFile(p) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// LoadFromPaths loads every policy under paths. Any unreadable or invalid
// file fails the whole load, so a broken policy never silently disappears
// from the guard. Policy names must be unique across files.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	list, err := files(paths)
	if err != nil {
		return nil, err
	}

	policies := make([]Policy, 0, len(list))
	origin := make(map[string]string, len(list))
	for _, path := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := l.loadFromFile(ctx, path)
		if err != nil {
			return nil, err
		}
		if prev, dup := origin[p.Name]; dup {
			return nil, fmt.Errorf("policy %s is defined by both %s and %s", p.Name, prev, path)
		}
		origin[p.Name] = path
		policies = append(policies, *p)
	}

	l.logger.Info().
		Int("policies", len(policies)).
		Int("paths", len(paths)).
		Msg("Policies loaded")
	return policies, nil
}

// loadFromFile parses one policy file, reusing the cached result while the
// file is unchanged.
func (l *Loader) loadFromFile(_ context.Context, path string) (*Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	l.mu.Lock()
	c, ok := l.cache[path]
	l.mu.Unlock()
	if ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		p := c.policy
		return &p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var p *Policy
	switch filepath.Ext(path) {
	case ".rego":
		p, err = parseRego(path, data)
	case ".json":
		p, err = parseJSON(path, data)
	default:
		err = fmt.Errorf("%s is not a .rego or .json policy", path)
	}
	if err != nil {
		return nil, err
	}
	p.Source = path
	p.UpdatedAt = info.ModTime()

	l.mu.Lock()
	l.cache[path] = cachedPolicy{policy: *p, modTime: info.ModTime(), size: info.Size()}
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", path).
		Str("policy", p.Name).
		Str("severity", string(p.Severity)).
		Strs("commands", p.Commands).
		Msg("Policy parsed")
	return p, nil
}

func parseRego(path string, data []byte) (*Policy, error) {
	h, err := readHeader(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: h.description,
		Rego:        string(data),
		Severity:    h.severity,
		Commands:    h.commands,
		Tags:        h.tags,
		Enabled:     true,
	}, nil
}

func parseJSON(path string, data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: invalid policy document: %w", path, err)
	}
	if p.Name == "" || p.Rego == "" {
		return nil, fmt.Errorf("%s: policy document needs a name and rego", path)
	}
	switch p.Severity {
	case "":
		p.Severity = SeverityError
	case SeverityInfo, SeverityWarning, SeverityError:
	default:
		return nil, fmt.Errorf("%s: unknown severity %q", path, p.Severity)
	}
	p.Builtin = false
	return &p, nil
}

// header is what the leading comment block of a rego file declares.
type header struct {
	description string
	severity    Severity
	commands    []string
	tags        []string
}

// readHeader parses the comment lines before the first rego statement.
// Rego files without a severity directive block.
func readHeader(content string) (header, error) {
	h := header{severity: SeverityError}
	var desc []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		key, value, isDirective := strings.Cut(comment, ":")
		if !isDirective {
			if comment != "" {
				desc = append(desc, comment)
			}
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "severity":
			switch s := Severity(value); s {
			case SeverityInfo, SeverityWarning, SeverityError:
				h.severity = s
			default:
				return h, fmt.Errorf("unknown severity %q", value)
			}
		case "commands":
			h.commands = splitList(value)
		case "tags":
			h.tags = splitList(value)
		default:
			desc = append(desc, comment)
		}
	}
	h.description = strings.Join(desc, " ")
	return h, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Watch reloads the policies under paths whenever a policy file changes and
// hands them to apply, until ctx is done or StopWatching is called. A reload
// that fails to load or apply leaves the previous policies in force.
func (l *Loader) Watch(ctx context.Context, paths []string, apply func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher

	for _, path := range paths {
		if err := l.add(path); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	go l.run(ctx, paths, apply)

	l.logger.Info().Strs("paths", paths).Msg("Watching policies")
	return nil
}

// add watches a file, or a directory and everything below it.
func (l *Loader) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.watcher.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return l.watcher.Add(p)
		}
		return nil
	})
}

func (l *Loader) run(ctx context.Context, paths []string, apply func([]Policy) error) {
	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = l.watcher.Close()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := l.add(event.Name); err != nil {
						l.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
					}
					continue
				}
			}
			if !isPolicyFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			l.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Policy file changed")
			timer.Reset(reloadDelay)

		case <-timer.C:
			l.reload(ctx, paths, apply)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

func (l *Loader) reload(ctx context.Context, paths []string, apply func([]Policy) error) {
	policies, err := l.LoadFromPaths(ctx, paths)
	if err == nil {
		err = apply(policies)
	}
	if err != nil {
		l.logger.Error().Err(err).Msg("Policy reload failed; keeping the previous policies")
		return
	}
	l.logger.Info().Int("policies", len(policies)).Msg("Policies reloaded")
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache forgets every parsed file.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]cachedPolicy)
	l.mu.Unlock()
}
