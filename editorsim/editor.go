// Package editorsim is an in-memory stand-in for the editor side of the bridge. It keeps a
// small asset table and exposes the same services a live editor plugin does, so the bridge
// can be exercised end to end without an editor running.
package editorsim

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"editor-bridge/server"
)

// Asset classes known to the simulator.
const (
	ClassStaticMesh    = "StaticMesh"
	ClassSkeletalMesh  = "SkeletalMesh"
	ClassSkeleton      = "Skeleton"
	ClassNiagaraSystem = "NiagaraSystem"
	ClassDataAsset     = "DataAsset"
	ClassWorld         = "World"
)

// DefaultLandscapeExtent is the half-width of the square landscape, in world units,
// centred on the origin. Foliage traces outside it miss.
const DefaultLandscapeExtent = 5000.0

// Socket is a named attachment point on a bone.
type Socket struct {
	Name             string     `json:"socket_name"`
	Bone             string     `json:"bone_name"`
	RelativeLocation [3]float64 `json:"relative_location"`
}

// Asset is one entry in the simulated content browser.
type Asset struct {
	Path  string
	Class string

	// SkeletalMesh
	Bones   []string
	Sockets []Socket

	// NiagaraSystem
	CompileErrors   []string
	CompileWarnings []string

	// DataAsset
	Properties map[string]json.RawMessage
}

type asset struct {
	Asset
	uncommitted int // sockets added since the last commit_bone_changes
}

// Editor holds the simulated editor state shared by all services.
type Editor struct {
	mu              sync.Mutex
	assets          map[string]*asset
	foliage         map[string]int // mesh path → placed instances
	landscapeExtent float64
}

// NewEditor returns an editor populated with a small sample project.
func NewEditor() *Editor {
	e := NewEmptyEditor()
	for _, a := range sampleAssets() {
		e.AddAsset(a)
	}
	return e
}

// NewEmptyEditor returns an editor with no assets.
func NewEmptyEditor() *Editor {
	return &Editor{
		assets:          make(map[string]*asset),
		foliage:         make(map[string]int),
		landscapeExtent: DefaultLandscapeExtent,
	}
}

// AddAsset adds or replaces an asset.
func (e *Editor) AddAsset(a Asset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a.Bones = append([]string(nil), a.Bones...)
	a.Sockets = append([]Socket(nil), a.Sockets...)
	if a.Properties != nil {
		props := make(map[string]json.RawMessage, len(a.Properties))
		for k, v := range a.Properties {
			props[k] = v
		}
		a.Properties = props
	}
	e.assets[a.Path] = &asset{Asset: a}
}

// Register mounts every editor service on srv.
func (e *Editor) Register(srv *server.Server) error {
	services := []struct {
		name string
		rcvr any
	}{
		{"FoliageService", &FoliageService{ed: e}},
		{"SkeletonService", &SkeletonService{ed: e}},
		{"NiagaraService", &NiagaraService{ed: e}},
		{"AssetDiscoveryService", &AssetDiscoveryService{ed: e}},
		{"DataAssetService", &DataAssetService{ed: e}},
	}
	for _, s := range services {
		if err := srv.RegisterName(s.name, s.rcvr); err != nil {
			return err
		}
	}
	return nil
}

// lookup must be called with mu held.
func (e *Editor) lookup(path string) (*asset, bool) {
	a, ok := e.assets[path]
	return a, ok
}

// AssetSummary is how assets are listed over the wire.
type AssetSummary struct {
	Path  string `json:"path"`
	Class string `json:"class"`
}

func (e *Editor) list(prefix, class string) []AssetSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []AssetSummary{}
	for path, a := range e.assets {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if class != "" && a.Class != class {
			continue
		}
		out = append(out, AssetSummary{Path: path, Class: a.Class})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sampleAssets() []Asset {
	return []Asset{
		{Path: "/Game/Foliage/SM_Fern", Class: ClassStaticMesh},
		{Path: "/Game/Foliage/SM_Pine", Class: ClassStaticMesh},
		{Path: "/Game/Foliage/SM_Rock_01", Class: ClassStaticMesh},
		{
			Path:  "/Game/Characters/Hero/SK_Hero",
			Class: ClassSkeletalMesh,
			Bones: []string{
				"root", "pelvis", "spine_01", "spine_02", "neck_01", "head",
				"upperarm_l", "hand_l", "upperarm_r", "hand_r", "foot_l", "foot_r",
			},
			Sockets: []Socket{{Name: "weapon_r", Bone: "hand_r"}},
		},
		{Path: "/Game/Characters/Hero/SKEL_Hero", Class: ClassSkeleton},
		{
			Path:            "/Game/FX/NS_Sparks",
			Class:           ClassNiagaraSystem,
			CompileWarnings: []string{"Emitter 'Sparks': fixed bounds not set, bounds will be calculated every frame"},
		},
		{
			Path:          "/Game/FX/NS_Trail_Broken",
			Class:         ClassNiagaraSystem,
			CompileErrors: []string{"Emitter 'Trail': module 'Solve Forces and Velocity' reads Particles.Mass before it is written"},
		},
		{
			Path:  "/Game/Data/DA_GameSettings",
			Class: ClassDataAsset,
			Properties: map[string]json.RawMessage{
				"max_players":          json.RawMessage(`16`),
				"match_length_seconds": json.RawMessage(`600`),
				"map_name":             json.RawMessage(`"Arena"`),
				"friendly_fire":        json.RawMessage(`false`),
			},
		},
		{Path: "/Game/Maps/L_Arena", Class: ClassWorld},
	}
}
