package editorsim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"editor-bridge/server"
)

const maxScatterCount = 10000

type ScatterArgs struct {
	MeshPath string  `json:"mesh_path"`
	Count    int     `json:"count"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Radius   float64 `json:"radius"` // 0 means 1000
	Seed     uint64  `json:"seed"`
}

type ScatterReply struct {
	MeshPath          string `json:"mesh_path"`
	InstancesAdded    int    `json:"instances_added"`
	InstancesRejected int    `json:"instances_rejected"`
}

type ListFoliageArgs struct {
	MeshPath string `json:"mesh_path"`
}

type FoliageCount struct {
	MeshPath string `json:"mesh_path"`
	Count    int    `json:"count"`
}

type ListFoliageReply struct {
	Instances []FoliageCount `json:"instances"`
	Total     int            `json:"total"`
}

type ClearFoliageArgs struct {
	MeshPath string `json:"mesh_path"` // empty clears every mesh
}

type ClearFoliageReply struct {
	InstancesRemoved int `json:"instances_removed"`
}

// FoliageService paints foliage instances onto the landscape.
type FoliageService struct {
	ed *Editor
}

// ScatterFoliage places Count instances of a static mesh at random points inside a disc.
// Each point is traced down onto the landscape; points whose trace misses are rejected,
// so InstancesAdded + InstancesRejected always equals Count. The same seed always
// produces the same split.
func (s *FoliageService) ScatterFoliage(args *ScatterArgs, reply *ScatterReply) error {
	if args.Count < 1 || args.Count > maxScatterCount {
		return server.InvalidArguments("count must be between 1 and %d, got %d", maxScatterCount, args.Count)
	}
	if args.Radius < 0 {
		return server.InvalidArguments("radius must not be negative")
	}
	radius := args.Radius
	if radius == 0 {
		radius = 1000
	}

	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	a, ok := s.ed.lookup(args.MeshPath)
	if !ok {
		return fmt.Errorf("mesh %s not found", args.MeshPath)
	}
	if a.Class != ClassStaticMesh {
		return fmt.Errorf("asset %s is a %s, foliage needs a StaticMesh", args.MeshPath, a.Class)
	}

	rng := rand.New(rand.NewPCG(args.Seed, 0x9e3779b97f4a7c15))
	extent := s.ed.landscapeExtent
	added := 0
	for i := 0; i < args.Count; i++ {
		angle := rng.Float64() * 2 * math.Pi
		dist := radius * math.Sqrt(rng.Float64())
		x := args.CenterX + dist*math.Cos(angle)
		y := args.CenterY + dist*math.Sin(angle)
		if math.Abs(x) <= extent && math.Abs(y) <= extent {
			added++
		}
	}
	s.ed.foliage[args.MeshPath] += added

	reply.MeshPath = args.MeshPath
	reply.InstancesAdded = added
	reply.InstancesRejected = args.Count - added
	return nil
}

// ListFoliage reports placed instances per mesh, sorted by mesh path.
func (s *FoliageService) ListFoliage(args *ListFoliageArgs, reply *ListFoliageReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	reply.Instances = []FoliageCount{}
	for mesh, n := range s.ed.foliage {
		if args.MeshPath != "" && mesh != args.MeshPath {
			continue
		}
		reply.Instances = append(reply.Instances, FoliageCount{MeshPath: mesh, Count: n})
		reply.Total += n
	}
	sort.Slice(reply.Instances, func(i, j int) bool {
		return reply.Instances[i].MeshPath < reply.Instances[j].MeshPath
	})
	return nil
}

func (s *FoliageService) ClearFoliage(args *ClearFoliageArgs, reply *ClearFoliageReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	if args.MeshPath == "" {
		for mesh, n := range s.ed.foliage {
			reply.InstancesRemoved += n
			delete(s.ed.foliage, mesh)
		}
		return nil
	}
	reply.InstancesRemoved = s.ed.foliage[args.MeshPath]
	delete(s.ed.foliage, args.MeshPath)
	return nil
}
