package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	File-backed device directory.
 *
 * Description:	Loads a YAML roster mapping device-reported unique
 *		ids to registered devices. For maximum flexibility the
 *		roster is read at run time rather than compiled in.
 *
 *		An entry may end in "?" or "*" wildcards so a single
 *		line covers a production batch sharing an IMEI prefix.
 *		Entries are sorted by decreasing length so the search
 *		goes from most specific to least specific: a full
 *		15-digit IMEI wins over an 8-digit batch prefix.
 *
 *---------------------------------------------------------------*/

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type rosterEntry struct {
	ID         int64             `yaml:"id"`
	UniqueID   string            `yaml:"unique_id"`
	Model      string            `yaml:"model"`
	Attributes map[string]string `yaml:"attributes"`
}

type rosterFile struct {
	Devices []rosterEntry `yaml:"devices"`
}

type prefixTemplate struct {
	prefix     string
	model      string
	attributes map[string]string
}

// FileDirectory resolves unique ids against a YAML roster. Wildcard
// entries act as templates: the first device matching one is minted a
// fresh id and remembered, so it keeps that id across reconnects.
type FileDirectory struct {
	mu       sync.Mutex
	exact    map[string]*DeviceInfo
	prefixes []*prefixTemplate
	nextID   int64
}

func LoadDeviceDirectory(path string) (*FileDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device roster: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("parsing device roster %s: %w", path, err)
	}

	d := &FileDirectory{
		exact:  make(map[string]*DeviceInfo),
		nextID: 1,
	}

	for _, entry := range roster.Devices {
		if entry.UniqueID == "" {
			return nil, fmt.Errorf("device roster %s: entry without unique_id", path)
		}

		if strings.ContainsAny(entry.UniqueID, "?*") {
			prefix := strings.TrimRight(entry.UniqueID, "?*")
			d.prefixes = append(d.prefixes, &prefixTemplate{
				prefix:     prefix,
				model:      entry.Model,
				attributes: entry.Attributes,
			})
			continue
		}

		if _, ok := d.exact[entry.UniqueID]; ok {
			return nil, fmt.Errorf("device roster %s: duplicate unique_id %s", path, entry.UniqueID)
		}

		id := entry.ID
		if id == 0 {
			id = d.nextID
		}
		if id >= d.nextID {
			d.nextID = id + 1
		}
		d.exact[entry.UniqueID] = &DeviceInfo{
			ID:         id,
			UniqueID:   entry.UniqueID,
			Model:      entry.Model,
			Attributes: entry.Attributes,
		}
	}

	// Longest prefix first; ties resolved alphabetically so the
	// order is stable across loads.
	slices.SortFunc(d.prefixes, func(a, b *prefixTemplate) int {
		if c := cmp.Compare(len(b.prefix), len(a.prefix)); c != 0 {
			return c
		}
		return strings.Compare(a.prefix, b.prefix)
	})

	return d, nil
}

// Lookup implements DeviceDirectory.
func (d *FileDirectory) Lookup(uniqueID string) (*DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info, ok := d.exact[uniqueID]; ok {
		return info, nil
	}

	for _, t := range d.prefixes {
		if strings.HasPrefix(uniqueID, t.prefix) {
			info := &DeviceInfo{
				ID:         d.nextID,
				UniqueID:   uniqueID,
				Model:      t.model,
				Attributes: t.attributes,
			}
			d.nextID++
			d.exact[uniqueID] = info
			return info, nil
		}
	}

	return nil, ErrUnknownDevice
}

// Size returns the number of concrete devices known so far, counting
// entries minted from wildcard templates.
func (d *FileDirectory) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.exact)
}
