package editorsim

import (
	"fmt"
	"slices"

	"editor-bridge/server"
)

type AddSocketArgs struct {
	SkeletalMeshPath string    `json:"skeletal_mesh_path"`
	SocketName       string    `json:"socket_name"`
	BoneName         string    `json:"bone_name"`
	RelativeLocation []float64 `json:"relative_location,omitempty"`
}

type AddSocketReply struct {
	SkeletalMeshPath   string `json:"skeletal_mesh_path"`
	SocketName         string `json:"socket_name"`
	BoneName           string `json:"bone_name"`
	UncommittedChanges int    `json:"uncommitted_changes"`
}

type SkeletalMeshArgs struct {
	SkeletalMeshPath string `json:"skeletal_mesh_path"`
}

type ListSocketsReply struct {
	SkeletalMeshPath   string   `json:"skeletal_mesh_path"`
	Sockets            []Socket `json:"sockets"`
	UncommittedChanges int      `json:"uncommitted_changes"`
}

type CommitReply struct {
	SkeletalMeshPath string `json:"skeletal_mesh_path"`
	Committed        int    `json:"committed"`
}

// SkeletonService edits sockets on skeletal meshes. Sockets added with add_socket stay
// uncommitted until commit_bone_changes runs; saving the mesh before that loses them.
type SkeletonService struct {
	ed *Editor
}

func (s *SkeletonService) AddSocket(args *AddSocketArgs, reply *AddSocketReply) error {
	if args.SocketName == "" || args.BoneName == "" {
		return server.InvalidArguments("socket_name and bone_name are required")
	}
	var loc [3]float64
	switch len(args.RelativeLocation) {
	case 0:
	case 3:
		copy(loc[:], args.RelativeLocation)
	default:
		return server.InvalidArguments("relative_location needs 3 components, got %d", len(args.RelativeLocation))
	}

	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	mesh, err := s.skeletalMesh(args.SkeletalMeshPath)
	if err != nil {
		return err
	}
	if !slices.Contains(mesh.Bones, args.BoneName) {
		return fmt.Errorf("bone %s not found on %s", args.BoneName, args.SkeletalMeshPath)
	}
	for _, sock := range mesh.Sockets {
		if sock.Name == args.SocketName {
			return fmt.Errorf("socket %s already exists on %s", args.SocketName, args.SkeletalMeshPath)
		}
	}

	mesh.Sockets = append(mesh.Sockets, Socket{Name: args.SocketName, Bone: args.BoneName, RelativeLocation: loc})
	mesh.uncommitted++

	reply.SkeletalMeshPath = args.SkeletalMeshPath
	reply.SocketName = args.SocketName
	reply.BoneName = args.BoneName
	reply.UncommittedChanges = mesh.uncommitted
	return nil
}

func (s *SkeletonService) ListSockets(args *SkeletalMeshArgs, reply *ListSocketsReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	mesh, err := s.skeletalMesh(args.SkeletalMeshPath)
	if err != nil {
		return err
	}
	reply.SkeletalMeshPath = args.SkeletalMeshPath
	reply.Sockets = append([]Socket{}, mesh.Sockets...)
	reply.UncommittedChanges = mesh.uncommitted
	return nil
}

func (s *SkeletonService) CommitBoneChanges(args *SkeletalMeshArgs, reply *CommitReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	mesh, err := s.skeletalMesh(args.SkeletalMeshPath)
	if err != nil {
		return err
	}
	reply.SkeletalMeshPath = args.SkeletalMeshPath
	reply.Committed = mesh.uncommitted
	mesh.uncommitted = 0
	return nil
}

// skeletalMesh must be called with ed.mu held. Sockets live on the skeletal mesh, so a
// Skeleton asset is refused with a message pointing at the mistake.
func (s *SkeletonService) skeletalMesh(path string) (*asset, error) {
	if path == "" {
		return nil, server.InvalidArguments("skeletal_mesh_path is required")
	}
	a, ok := s.ed.lookup(path)
	if !ok {
		return nil, fmt.Errorf("asset %s not found", path)
	}
	switch a.Class {
	case ClassSkeletalMesh:
		return a, nil
	case ClassSkeleton:
		return nil, fmt.Errorf("asset %s is a Skeleton, not a SkeletalMesh", path)
	default:
		return nil, fmt.Errorf("asset %s is a %s, not a SkeletalMesh", path, a.Class)
	}
}
