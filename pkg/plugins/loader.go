package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ManifestSource is a parsed manifest together with the directory it came from.
type ManifestSource struct {
	Manifest *Manifest
	Dir      string
}

// Loader discovers plugin manifests in filesystem directories
type Loader struct {
	pluginDirs []string
	log        *logrus.Logger
}

// NewLoader creates a new plugin loader
func NewLoader(dirs []string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}

	return &Loader{
		pluginDirs: dirs,
		log:        log,
	}
}

// Dirs returns the directories the loader scans.
func (l *Loader) Dirs() []string {
	return l.pluginDirs
}

// DiscoverManifests scans every plugin directory for subdirectories holding a
// plugin.yaml. Directories are visited in configuration order and entries in
// name order, so discovery is deterministic. Invalid manifests are skipped.
func (l *Loader) DiscoverManifests(ctx context.Context) ([]ManifestSource, error) {
	var sources []ManifestSource

	for _, dir := range l.pluginDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !entry.IsDir() {
				continue
			}

			pluginDir := filepath.Join(dir, entry.Name())
			manifest, err := LoadManifestFromDir(pluginDir)
			if err != nil {
				l.log.Warnf("Failed to load plugin from %s: %v", pluginDir, err)
				continue
			}

			if problems := ValidateManifest(manifest); HasErrors(problems) {
				l.log.Warnf("Skipping plugin in %s: manifest validation failed: %v", pluginDir, problems)
				continue
			}

			sources = append(sources, ManifestSource{Manifest: manifest, Dir: pluginDir})
		}
	}

	return sources, nil
}

// Discover scans the plugin directories and links the discovered manifests
// into plugins. Dependencies may name discovered plugins or any of known.
func (l *Loader) Discover(ctx context.Context, known ...*Plugin) ([]*Plugin, error) {
	sources, err := l.DiscoverManifests(ctx)
	if err != nil {
		return nil, err
	}

	plugins, err := BuildPlugins(sources, known...)
	if err != nil {
		return nil, err
	}

	l.log.Infof("Discovered %d plugins", len(plugins))
	return plugins, nil
}

// BuildPlugins turns manifests into plugins, linking dependency ids to plugin
// objects. When two manifests share an id, dependents are linked to the first.
func BuildPlugins(sources []ManifestSource, known ...*Plugin) ([]*Plugin, error) {
	byID := make(map[string]*Plugin, len(sources)+len(known))
	for _, k := range known {
		if k != nil {
			byID[k.ID] = k
		}
	}

	result := make([]*Plugin, 0, len(sources))
	for _, src := range sources {
		p := &Plugin{
			ID:    src.Manifest.ID,
			Dir:   src.Dir,
			Hooks: make(map[string]HookDeclaration, len(src.Manifest.Hooks)),
		}
		for category, ref := range src.Manifest.Hooks {
			p.Hooks[category] = Reference(ref)
		}
		if _, exists := byID[p.ID]; !exists {
			byID[p.ID] = p
		}
		result = append(result, p)
	}

	for i, src := range sources {
		p := result[i]
		for _, depID := range src.Manifest.Dependencies {
			dep, ok := byID[depID]
			if !ok {
				return nil, fmt.Errorf("%w: %s requires %s", ErrDependencyNotFound, p.ID, depID)
			}
			p.Dependencies = append(p.Dependencies, dep)
		}
	}

	return result, nil
}

// GetDefaultPluginDirectories returns the default plugin search directories
func GetDefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}

	return []string{
		filepath.Join(homeDir, ".hookrt", "plugins"),
		"./plugins", // Current directory
	}
}
