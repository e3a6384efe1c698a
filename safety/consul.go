package safety

import (
	"context"
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/kadirpekel/hector-pml/workflow"
)

// ConsulSource loads the tool-permissions table from a Consul KV prefix,
// one JSON-encoded workflow.ToolPermission value per key, the key's final
// path segment being the tool name.
type ConsulSource struct {
	client *consulapi.Client
	prefix string
}

// NewConsulSource returns a ConsulSource reading keys under prefix.
func NewConsulSource(client *consulapi.Client, prefix string) *ConsulSource {
	return &ConsulSource{client: client, prefix: prefix}
}

func (s *ConsulSource) Permissions(_ context.Context) (map[string]workflow.ToolPermission, error) {
	pairs, _, err := s.client.KV().List(s.prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("[safety:ConsulSource.Permissions] listing %s: %w", s.prefix, err)
	}

	out := make(map[string]workflow.ToolPermission, len(pairs))
	for _, pair := range pairs {
		var perm workflow.ToolPermission
		if err := json.Unmarshal(pair.Value, &perm); err != nil {
			return nil, fmt.Errorf("[safety:ConsulSource.Permissions] decoding %s: %w", pair.Key, err)
		}
		if perm.Tool == "" {
			perm.Tool = toolNameFromKey(pair.Key)
		}
		out[perm.Tool] = perm
	}
	return out, nil
}

func toolNameFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
