// pkg/core/stationset.go
package core

// Card is a UI panel exposed on a station.
type Card struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Component string `json:"component"`
}

// Station is a named console and the cards it shows.
type Station struct {
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// StationSet is a reusable blueprint of stations.
type StationSet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SimulatorID string    `json:"simulator,omitempty"`
	Stations    []Station `json:"stations"`
}

// StationIndex returns the position of the named station or -1.
func (ss *StationSet) StationIndex(name string) int {
	for i := range ss.Stations {
		if ss.Stations[i].Name == name {
			return i
		}
	}
	return -1
}

// CardIndex returns the position of the named card or -1.
func (st *Station) CardIndex(name string) int {
	for i := range st.Cards {
		if st.Cards[i].Name == name {
			return i
		}
	}
	return -1
}
