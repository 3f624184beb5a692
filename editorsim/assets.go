package editorsim

import (
	"bytes"
	"encoding/json"
	"fmt"

	"editor-bridge/server"
)

type ListAssetsArgs struct {
	PathPrefix string `json:"path_prefix"`
	ClassName  string `json:"class_name"`
	Limit      int    `json:"limit"` // 0 means no limit
}

type ListAssetsReply struct {
	Assets []AssetSummary `json:"assets"`
	Total  int            `json:"total"` // matches before Limit was applied
}

// AssetDiscoveryService queries the asset registry.
type AssetDiscoveryService struct {
	ed *Editor
}

// ListAssets returns assets sorted by path.
func (s *AssetDiscoveryService) ListAssets(args *ListAssetsArgs, reply *ListAssetsReply) error {
	if args.Limit < 0 {
		return server.InvalidArguments("limit must not be negative")
	}
	found := s.ed.list(args.PathPrefix, args.ClassName)
	reply.Total = len(found)
	if args.Limit > 0 && len(found) > args.Limit {
		found = found[:args.Limit]
	}
	reply.Assets = found
	return nil
}

type GetPropertyArgs struct {
	AssetPath    string `json:"asset_path"`
	PropertyName string `json:"property_name"`
}

type GetPropertyReply struct {
	AssetPath    string          `json:"asset_path"`
	PropertyName string          `json:"property_name"`
	Value        json.RawMessage `json:"value"`
}

type SetPropertyArgs struct {
	AssetPath    string          `json:"asset_path"`
	PropertyName string          `json:"property_name"`
	Value        json.RawMessage `json:"value"`
}

type SetPropertyReply struct {
	AssetPath    string          `json:"asset_path"`
	PropertyName string          `json:"property_name"`
	Previous     json.RawMessage `json:"previous"`
}

// DataAssetService reads and writes properties of data assets. Properties are fixed by
// the asset's class: set_property can change a value but not add a property or change
// its JSON type.
type DataAssetService struct {
	ed *Editor
}

func (s *DataAssetService) GetProperty(args *GetPropertyArgs, reply *GetPropertyReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	a, err := s.dataAsset(args.AssetPath)
	if err != nil {
		return err
	}
	v, ok := a.Properties[args.PropertyName]
	if !ok {
		return fmt.Errorf("property %s not found on %s", args.PropertyName, args.AssetPath)
	}
	reply.AssetPath = args.AssetPath
	reply.PropertyName = args.PropertyName
	reply.Value = v
	return nil
}

func (s *DataAssetService) SetProperty(args *SetPropertyArgs, reply *SetPropertyReply) error {
	if len(args.Value) == 0 {
		return server.InvalidArguments("value is required")
	}

	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	a, err := s.dataAsset(args.AssetPath)
	if err != nil {
		return err
	}
	prev, ok := a.Properties[args.PropertyName]
	if !ok {
		return fmt.Errorf("property %s not found on %s", args.PropertyName, args.AssetPath)
	}
	if jsonType(prev) != jsonType(args.Value) {
		return fmt.Errorf("property %s is a %s, cannot assign a %s", args.PropertyName, jsonType(prev), jsonType(args.Value))
	}
	a.Properties[args.PropertyName] = append(json.RawMessage(nil), args.Value...)

	reply.AssetPath = args.AssetPath
	reply.PropertyName = args.PropertyName
	reply.Previous = prev
	return nil
}

// dataAsset must be called with ed.mu held.
func (s *DataAssetService) dataAsset(path string) (*asset, error) {
	if path == "" {
		return nil, server.InvalidArguments("asset_path is required")
	}
	a, ok := s.ed.lookup(path)
	if !ok {
		return nil, fmt.Errorf("asset %s not found", path)
	}
	if a.Class != ClassDataAsset {
		return nil, fmt.Errorf("asset %s is a %s, not a DataAsset", path, a.Class)
	}
	return a, nil
}

func jsonType(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
