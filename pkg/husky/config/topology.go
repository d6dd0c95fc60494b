// Package config loads the session bootstrap tuple every process needs
// before it can join a session: its own process id, the address it
// should bind its inbound socket to, and the process id each global
// thread in the topology lives on.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/husky-team/husky/pkg/husky/types"
)

// rawTopology mirrors the on-disk YAML shape. Field names are kept
// snake_case to match the session bootstrap file a cluster launcher
// writes, independent of the Go-side naming in types.ProcessTopology.
type rawTopology struct {
	ProcessID    uint32            `yaml:"process_id"`
	BindAddress  string            `yaml:"bind_address"`
	Peers        map[uint32]string `yaml:"peers"`
	ThreadHosts  map[uint32]uint32 `yaml:"thread_hosts"`
	LocalThreads []uint32          `yaml:"local_threads"`
}

// Load parses a session topology file into a types.ProcessTopology,
// surfacing malformed or incomplete configuration as a ConfigError.
func Load(path string) (*types.ProcessTopology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.ConfigError("reading topology file %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes topology YAML already read into memory.
func Parse(data []byte) (*types.ProcessTopology, error) {
	var raw rawTopology
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.ConfigError("parsing topology yaml: %v", err)
	}

	if raw.BindAddress == "" {
		return nil, types.ConfigError("topology is missing bind_address for process %d", raw.ProcessID)
	}
	if len(raw.ThreadHosts) == 0 {
		return nil, types.ConfigError("topology has no thread_hosts entries")
	}

	top := &types.ProcessTopology{
		Self:          types.ProcessId(raw.ProcessID),
		BindAddress:   types.PeerAddress(raw.BindAddress),
		Peers:         make(map[types.ProcessId]types.PeerAddress, len(raw.Peers)),
		ThreadProcess: make(map[types.GlobalThreadId]types.ProcessId, len(raw.ThreadHosts)),
	}
	for pid, addr := range raw.Peers {
		if addr == "" {
			return nil, types.ConfigError("topology has an unresolvable address for peer process %d", pid)
		}
		top.Peers[types.ProcessId(pid)] = types.PeerAddress(addr)
	}
	for tid, pid := range raw.ThreadHosts {
		top.ThreadProcess[types.GlobalThreadId(tid)] = types.ProcessId(pid)
	}
	for _, tid := range raw.LocalThreads {
		top.LocalThreads = append(top.LocalThreads, types.GlobalThreadId(tid))
	}

	for _, tid := range top.LocalThreads {
		if pid, ok := top.ThreadProcess[tid]; !ok || pid != top.Self {
			return nil, types.ConfigError("local thread %d is not mapped to this process (%d) in thread_hosts", tid, top.Self)
		}
	}

	return top, nil
}
