// Package pattern mines message templates from cleaned log lines with Drain.
package pattern

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/jaeyo/go-drain3/pkg/drain3"
)

// Template is a Drain cluster. Hits counts the lines of the latest Feed
// call that landed in it; Size is its lifetime line count.
type Template struct {
	ID      uuid.UUID `json:"id"`
	Pattern string    `json:"pattern"`
	Hits    int       `json:"hits,omitempty"`
	Size    int       `json:"size"`
}

// Miner groups lines into templates online.
type Miner struct {
	mu    sync.Mutex
	drain *drain3.Drain
	// ids maps Drain cluster IDs to stable UUIDs for the life of the miner.
	ids map[int64]uuid.UUID
}

// NewMiner creates a Miner with depth 4, similarity 0.4 and the extra
// delimiters in extraDelimiters.
func NewMiner() (*Miner, error) {
	d, err := drain3.NewDrain(
		drain3.WithDepth(4),
		drain3.WithSimTh(0.4),
		drain3.WithExtraDelimiter(extraDelimiters),
	)
	if err != nil {
		return nil, errors.Errorf("create drain: %w", err)
	}
	return &Miner{
		drain: d,
		ids:   make(map[int64]uuid.UUID),
	}, nil
}

// Feed adds lines to the miner and returns the templates they matched,
// most hit first. Blank lines are skipped. On error the lines before the
// failing one stay learned.
func (m *Miner) Feed(lines []string) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := make(map[int64]int)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cluster, _, err := m.drain.AddLogMessage(line)
		if err != nil {
			return nil, errors.Errorf("drain add: %w", err)
		}
		if cluster == nil {
			continue
		}
		if _, ok := m.ids[cluster.ClusterId]; !ok {
			m.ids[cluster.ClusterId] = uuid.New()
		}
		hits[cluster.ClusterId]++
	}

	var out []Template
	for _, c := range m.drain.GetClusters() {
		n, ok := hits[c.ClusterId]
		if !ok {
			continue
		}
		out = append(out, Template{
			ID:      m.ids[c.ClusterId],
			Pattern: c.GetTemplate(),
			Hits:    n,
			Size:    int(c.Size),
		})
	}
	slices.SortFunc(out, func(a, b Template) int {
		if c := cmp.Compare(b.Hits, a.Hits); c != 0 {
			return c
		}
		return cmp.Compare(a.Pattern, b.Pattern)
	})
	return out, nil
}

// Templates returns every cluster discovered so far, largest first.
func (m *Miner) Templates() []Template {
	m.mu.Lock()
	defer m.mu.Unlock()

	clusters := m.drain.GetClusters()
	out := make([]Template, 0, len(clusters))
	for _, c := range clusters {
		id, ok := m.ids[c.ClusterId]
		if !ok {
			continue
		}
		out = append(out, Template{ID: id, Pattern: c.GetTemplate(), Size: int(c.Size)})
	}
	slices.SortFunc(out, func(a, b Template) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Pattern, b.Pattern)
	})
	return out
}
