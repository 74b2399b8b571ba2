package panel

import (
	"time"

	"github.com/metaoverlayfs/panel/pkg/device"
	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/storage"
	"github.com/metaoverlayfs/panel/pkg/view"
)

// Snapshot is one published, immutable state of the panel. Readers must
// not modify it; every change publishes a new Snapshot.
type Snapshot struct {
	Generation uint64           `json:"generation"`
	Inventory  module.Inventory `json:"inventory"`
	Live       liveset.Set      `json:"live"`
	Device     device.Info      `json:"device"`
	Storage    storage.Usage    `json:"storage"`
	// Speculative is set between the optimistic patch after a toggle and
	// the authoritative reload that follows it.
	Speculative bool      `json:"speculative,omitempty"`
	ModulesAt   time.Time `json:"modulesAt"`
	DashboardAt time.Time `json:"dashboardAt"`
	// LastError is the last whole-refresh failure, cleared by the next
	// successful refresh.
	LastError string `json:"lastError,omitempty"`
}

func (s *Snapshot) clone() *Snapshot {
	cp := *s
	return &cp
}

// View projects the snapshot for the modules surface.
func (s *Snapshot) View(st view.State) view.View {
	return view.Build(s.Inventory, s.Live, st)
}

// Stats are the module counts shown on the dashboard.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Updating int `json:"updating"`
	// Live is the size of the live set file, including ids no longer in
	// the inventory.
	Live int `json:"live"`
}

// Dashboard is everything the dashboard surface renders.
type Dashboard struct {
	Device      device.Info      `json:"device"`
	Storage     storage.Usage    `json:"storage"`
	Stats       Stats            `json:"stats"`
	Modules     module.Inventory `json:"modules"`
	RefreshedAt time.Time        `json:"refreshedAt"`
	LastError   string           `json:"lastError,omitempty"`
}

// Dashboard projects the snapshot for the dashboard surface.
func (s *Snapshot) Dashboard() Dashboard {
	c := view.Count(s.Inventory, s.Live)
	mods := s.Inventory
	if mods == nil {
		mods = module.Inventory{}
	}
	return Dashboard{
		Device:  s.Device,
		Storage: s.Storage,
		Stats: Stats{
			Total:    c.All,
			Active:   c.Active,
			Inactive: c.Inactive,
			Updating: c.Updating,
			Live:     s.Live.Len(),
		},
		Modules:     mods,
		RefreshedAt: s.DashboardAt,
		LastError:   s.LastError,
	}
}
