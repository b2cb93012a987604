// Package version tracks HSMP interface versions and the message set
// each version supports.
//
// The interface version is a small monotonically increasing integer
// reported by the service processor. Each version bounds the highest
// message id firmware is expected to implement; the per-version message
// tables are embedded YAML manifests. A client negotiates the lesser of
// its own maximum and the firmware-reported version, so a newer library
// talking to older firmware quietly narrows its capability set instead
// of issuing unsupported requests.
package version

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Current is the highest interface version implemented by this library.
const Current = 3

//go:embed specs/*.yaml
var specFS embed.FS

// Manifest describes one HSMP interface version.
type Manifest struct {
	Version      int          `yaml:"version"`
	Description  string       `yaml:"description"`
	MaxMessageID uint32       `yaml:"max_message_id"`
	Messages     []MessageDef `yaml:"messages"`
}

// MessageDef is a named message with its mailbox id.
type MessageDef struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
}

var (
	cacheMu sync.RWMutex
	cache   = make(map[int]*Manifest)
)

// Load loads the manifest for an interface version.
func Load(version int) (*Manifest, error) {
	cacheMu.RLock()
	if m, ok := cache[version]; ok {
		cacheMu.RUnlock()
		return m, nil
	}
	cacheMu.RUnlock()

	data, err := specFS.ReadFile(fmt.Sprintf("specs/v%d.yaml", version))
	if err != nil {
		return nil, fmt.Errorf("interface version %d not known: %w", version, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest for version %d: %w", version, err)
	}

	cacheMu.Lock()
	cache[version] = &m
	cacheMu.Unlock()

	return &m, nil
}

// Available returns all interface versions with embedded manifests.
func Available() ([]int, error) {
	entries, err := specFS.ReadDir("specs")
	if err != nil {
		return nil, fmt.Errorf("reading specs directory: %w", err)
	}

	var versions []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".yaml"))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// MaxMessageID returns the highest message id the given interface
// version supports. The second return is false for versions without a
// manifest; no message is supported at such a version.
func MaxMessageID(version int) (uint32, bool) {
	m, err := Load(version)
	if err != nil {
		return 0, false
	}
	return m.MaxMessageID, true
}

// Supported reports whether msgID is within the message set of the
// given interface version.
func Supported(version int, msgID uint32) bool {
	max, ok := MaxMessageID(version)
	if !ok {
		return false
	}
	return msgID <= max
}

// Negotiate returns the interface version to operate at given the
// firmware-reported version: the lesser of the library's own maximum
// and the reported value.
func Negotiate(reported int) int {
	if reported > Current {
		return Current
	}
	return reported
}

// MessageName returns the symbolic name of a message id within this
// manifest.
func (m *Manifest) MessageName(id uint32) (string, bool) {
	for _, def := range m.Messages {
		if def.ID == id {
			return def.Name, true
		}
	}
	return "", false
}
