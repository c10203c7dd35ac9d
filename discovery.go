// FILE: lixenwraith/layered/discovery.go
package layered

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// FileDiscoveryOptions configures automatic config file discovery.
type FileDiscoveryOptions struct {
	// Base name of config file (without extension)
	Name string

	// Extensions to try, in order. Empty means every registered format.
	Extensions []string

	// Custom search paths (searched before the defaults)
	Paths []string

	// Environment variable holding an explicit path
	EnvVar string

	// CLI flag holding an explicit path (e.g. "--config")
	CLIFlag string

	// Search the XDG config directories
	UseXDG bool

	// Search the current directory
	UseCurrentDir bool
}

// DefaultDiscoveryOptions returns sensible defaults for appName.
func DefaultDiscoveryOptions(appName string) FileDiscoveryOptions {
	return FileDiscoveryOptions{
		Name:          appName,
		EnvVar:        strings.ToUpper(appName) + "_CONFIG",
		CLIFlag:       "--config",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// DiscoverFile locates a config file. An explicit path from args or the
// environment wins over searching; the search visits custom paths, the
// current directory, then the XDG config home and dirs. It returns "" when
// nothing is found.
func DiscoverFile(opts FileDiscoveryOptions, args []string) string {
	if opts.CLIFlag != "" {
		for i, arg := range args {
			if arg == opts.CLIFlag && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, opts.CLIFlag+"=") {
				return strings.TrimPrefix(arg, opts.CLIFlag+"=")
			}
		}
	}

	if opts.EnvVar != "" {
		if path := os.Getenv(opts.EnvVar); path != "" {
			return path
		}
	}

	searchPaths := append([]string(nil), opts.Paths...)
	if opts.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			searchPaths = append(searchPaths, cwd)
		}
	}
	if opts.UseXDG {
		searchPaths = append(searchPaths, xdgConfigPaths(opts.Name)...)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = registeredExtensions()
	}
	for _, dir := range searchPaths {
		for _, ext := range exts {
			path := filepath.Join(dir, opts.Name+"."+strings.TrimPrefix(ext, "."))
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// WithFileDiscovery adds the discovered file as an optional source. Finding
// nothing is not an error; the application runs on defaults and environment.
func (b *Builder) WithFileDiscovery(opts FileDiscoveryOptions, args []string) *Builder {
	if path := DiscoverFile(opts, args); path != "" {
		b.AddSource(File(path).Optional())
	}
	return b
}

func xdgConfigPaths(appName string) []string {
	paths := []string{filepath.Join(xdg.ConfigHome, appName)}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appName))
	}
	return paths
}
